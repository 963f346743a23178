package snowflake

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestGenerate_StrictlyIncreasing(t *testing.T) {
	t.Parallel()
	g := NewGenerator(1)

	prev := g.Generate()
	for i := 0; i < 10_000; i++ {
		next := g.Generate()
		if next <= prev {
			t.Fatalf("non-increasing id at call %d: %d after %d", i, next, prev)
		}
		prev = next
	}
}

func TestGenerate_TimestampNeverDecreases(t *testing.T) {
	t.Parallel()
	g := NewGenerator(1)

	prev := g.Generate()
	for i := 0; i < 1000; i++ {
		next := g.Generate()
		if next.Millis() < prev.Millis() {
			t.Fatalf("timestamp regressed: %d -> %d", prev.Millis(), next.Millis())
		}
		prev = next
	}
}

func TestGenerate_DistinctWorkersNeverCollide(t *testing.T) {
	t.Parallel()
	g1 := NewGenerator(1)
	g2 := NewGenerator(2)

	seen := make(map[ID]struct{}, 2000)
	for i := 0; i < 1000; i++ {
		a, b := g1.Generate(), g2.Generate()
		if a == b {
			t.Fatalf("collision between workers: %d", a)
		}
		if _, dup := seen[a]; dup {
			t.Fatalf("duplicate id %d", a)
		}
		seen[a] = struct{}{}
		if _, dup := seen[b]; dup {
			t.Fatalf("duplicate id %d", b)
		}
		seen[b] = struct{}{}
	}
}

func TestGenerate_Layout(t *testing.T) {
	t.Parallel()
	g := NewGenerator(7)

	before := time.Now().UnixMilli()
	id := g.Generate()
	after := time.Now().UnixMilli()

	if id.Worker() != 7 {
		t.Fatalf("worker = %d, want 7", id.Worker())
	}
	if ms := id.Millis(); ms < before || ms > after {
		t.Fatalf("timestamp %d outside [%d, %d]", ms, before, after)
	}
	if id < 0 {
		t.Fatalf("id must stay in signed 63-bit range, got %d", id)
	}
}

func TestGenerate_Concurrent(t *testing.T) {
	t.Parallel()
	g := NewGenerator(3)

	const workers, perWorker = 8, 500
	var mu sync.Mutex
	seen := make(map[ID]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]ID, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, g.Generate())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				if _, dup := seen[id]; dup {
					t.Errorf("duplicate id %d under concurrency", id)
					return
				}
				seen[id] = struct{}{}
			}
		}()
	}
	wg.Wait()
}

func TestID_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	id := ID(4611686018427387905)
	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"4611686018427387905"` {
		t.Fatalf("marshal = %s, want decimal string", data)
	}

	var back ID
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if back != id {
		t.Fatalf("round trip: %d != %d", back, id)
	}

	// bare integers are accepted too
	if err := json.Unmarshal([]byte(`123456`), &back); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if back != 123456 {
		t.Fatalf("number decode = %d", back)
	}

	if err := json.Unmarshal([]byte(`"abc"`), &back); err == nil {
		t.Fatalf("want error for non-numeric string")
	}
}
