// Package model defines domain entities used by services, repositories and
// the gateway wire protocol.
package model

import (
	"time"

	"github.com/hfdforum/backend/internal/snowflake"
)

// UserFlags is a bitmask of account states.
type UserFlags int32

const (
	// FlagSystem marks the system account.
	FlagSystem UserFlags = 1 << 0
	// FlagStaff marks forum staff or trusted users.
	FlagStaff UserFlags = 1 << 1
	// FlagQuarantined temporarily restricts creating/editing messages and threads.
	FlagQuarantined UserFlags = 1 << 3
	// FlagBanned restricts the user from interacting with the API.
	FlagBanned UserFlags = 1 << 4
	// FlagSpammer marks the user as a spammer.
	FlagSpammer UserFlags = 1 << 5
	// FlagDeleted marks a deleted account.
	FlagDeleted UserFlags = 1 << 6
)

// Has reports whether all bits of flag are set.
func (f UserFlags) Has(flag UserFlags) bool { return f&flag == flag }

// Permissions is a bitmask of granted operations.
type Permissions int64

const (
	PermReadPublicThreads Permissions = 1 << 0
	PermCreateThreads     Permissions = 1 << 1
	PermManageThreads     Permissions = 1 << 2
	PermSendMessages      Permissions = 1 << 3
	PermManageMessages    Permissions = 1 << 4
	PermAddReactions      Permissions = 1 << 5
	PermManageCategories  Permissions = 1 << 6
	PermManageUsers       Permissions = 1 << 7
	PermModerateUsers     Permissions = 1 << 8

	// PermAdministrator grants everything. Dangerous to hand out.
	PermAdministrator Permissions = 1<<63 - 1
)

// Has reports whether all bits of p are granted.
func (p Permissions) Has(perm Permissions) bool { return p&perm == perm }

// DefaultPermissions are granted to newly registered users.
const DefaultPermissions = PermReadPublicThreads | PermCreateThreads |
	PermSendMessages | PermAddReactions

// User is a forum account. The password digest never leaves the server.
type User struct {
	ID          snowflake.ID `json:"id"`
	Username    string       `json:"username"`
	DisplayName *string      `json:"display_name"`
	Bio         *string      `json:"bio"`
	Permissions Permissions  `json:"permissions"`
	Flags       UserFlags    `json:"flags"`

	PasswordHash []byte `json:"-"`
	PasswordSalt []byte `json:"-"`
}

// Session binds a rotating secret triple to a user. Each login creates a
// session; the bearer token is derived from (ID, Secret1, Secret2, Secret3)
// and is revoked by deleting the session or replacing the triple. The triple
// is only ever replaced whole, never updated in part.
type Session struct {
	ID        snowflake.ID
	UserID    snowflake.ID
	Secret1   int64
	Secret2   int64
	Secret3   int64
	UserAgent string
	IP        string
	CreatedAt time.Time
}

// Thread is a discussion inside a category.
type Thread struct {
	ID              snowflake.ID `json:"id"`
	Title           string       `json:"title"`
	Author          User         `json:"author"`
	Flags           int64        `json:"flags"`
	OriginalMessage *Message     `json:"original_message"`
}

// Thread flag bits.
const (
	ThreadPinned int64 = 1 << 0
	ThreadLocked int64 = 1 << 1
)

// Message is a single post inside a thread.
type Message struct {
	ID                snowflake.ID `json:"id"`
	Content           string       `json:"content"`
	Author            User         `json:"author"`
	ThreadID          snowflake.ID `json:"thread_id"`
	ReferencedMessage *Message     `json:"referenced_message"`
	Flags             int64        `json:"flags"`
	UpdatedAt         *time.Time   `json:"updated_at"`
}

// Message flag bits.
const (
	MessageUndeleteable int64 = 1 << 0
	MessageSystem       int64 = 1 << 1
)

// Category groups threads.
type Category struct {
	ID          snowflake.ID `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Owner       *User        `json:"owner"`
	Locked      bool         `json:"locked"`
}
