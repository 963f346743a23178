// Package server exposes the HTTP surface: token-issuing auth endpoints and
// the gateway WebSocket mount. The forum's CRUD routes live elsewhere and
// reach connected clients only through Publish.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/hfdforum/backend/internal/errs"
	"github.com/hfdforum/backend/internal/gateway"
	"github.com/hfdforum/backend/internal/service"
)

// Server wires the auth service, the connection registry and the dispatcher
// behind an httprouter mux.
type Server struct {
	log      *zap.Logger
	auth     service.AuthService
	registry *gateway.Registry
	bus      *gateway.Dispatcher
	gwCfg    gateway.Config
	upgrader websocket.Upgrader
	handler  http.Handler

	// baseCtx parents every gateway connection; canceling it (process
	// shutdown) terminates all loops.
	baseCtx context.Context
}

// New constructs the HTTP layer. The gateway config is threaded through so
// tests can shorten protocol timing.
func New(ctx context.Context, log *zap.Logger, auth service.AuthService, registry *gateway.Registry, bus *gateway.Dispatcher, gwCfg gateway.Config) *Server {
	s := &Server{
		log:      log,
		auth:     auth,
		registry: registry,
		bus:      bus,
		gwCfg:    gwCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		baseCtx: ctx,
	}

	r := httprouter.New()
	r.POST("/auth/register", s.handleRegister)
	r.POST("/auth/login", s.handleLogin)
	r.POST("/auth/logout", s.handleLogout)
	r.GET("/gateway", s.handleGateway)
	s.handler = s.middleware(r)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Publish is the integration point REST collaborators use to reach connected
// clients. Delivery is best-effort and never blocks the caller.
func (s *Server) Publish(target gateway.Target, event gateway.Event) {
	s.bus.Publish(target, event)
}

// middleware adds request logging and panic recovery around the router.
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic",
					zap.Any("reason", rec),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", r.URL.Path),
				)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
		s.log.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", r.RemoteAddr),
		)
	})
}

type registerRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authResponse returns the acting user and their freshly issued token.
type authResponse struct {
	User  any    `json:"user"`
	Token string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}
	u, tok, err := s.auth.Register(r.Context(), req.Username, req.DisplayName, req.Password)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: u, Token: tok})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}
	u, tok, err := s.auth.LoginWithIP(r.Context(), req.Username, req.Password, remoteIP(r), r.UserAgent())
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: u, Token: tok})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tok := bearerToken(r)
	if tok == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}
	_, sess, err := s.auth.VerifyToken(r.Context(), tok)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.auth.Logout(r.Context(), sess.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGateway upgrades the socket and hands it to a connection task. The
// connection lives beyond this request; it is parented to the server
// context, not the request context.
func (s *Server) handleGateway(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("gateway upgrade failed", zap.Error(err))
		return
	}
	conn := gateway.NewConn(ws, s.auth, s.registry, s.bus, s.log, s.gwCfg)
	go conn.Run(s.baseCtx)
}

func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "username taken")
	case errors.Is(err, errs.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "username or password is invalid")
	case errors.Is(err, errs.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case strings.HasPrefix(err.Error(), "validation:"):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("auth handler failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func bearerToken(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
