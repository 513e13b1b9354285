package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeConn records everything the core sends to a client.
type fakeConn struct {
	mu       sync.Mutex
	events   []*Event
	closed   bool
	reason   CloseReason
	closes   int
	failSend error
}

func (c *fakeConn) Send(ev *Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if c.failSend != nil {
		return c.failSend
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) Close(reason CloseReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	if c.closed {
		return
	}
	c.closed = true
	c.reason = reason
}

func (c *fakeConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) closeReason() (CloseReason, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason, c.closed
}

// drain returns and forgets the recorded events.
func (c *fakeConn) drain() []*Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.events
	c.events = nil
	return out
}

func (c *fakeConn) count(kind EventKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func mustEvent(t *testing.T, c *fakeConn, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		for i, ev := range c.events {
			if ev.Kind == kind {
				c.events = append(c.events[:i:i], c.events[i+1:]...)
				c.mu.Unlock()
				return ev
			}
		}
		c.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustBeQuiet(t *testing.T, c *fakeConn) {
	t.Helper()
	if evs := c.drain(); len(evs) != 0 {
		kinds := make([]string, 0, len(evs))
		for _, ev := range evs {
			kinds = append(kinds, ev.Kind.String())
		}
		t.Fatalf("expected no events, got %v", kinds)
	}
}

// fakeSpaces is an in-memory space lookup.
type fakeSpaces struct {
	mu     sync.Mutex
	spaces map[string]Bounds
	err    error
	gate   chan struct{}
	calls  int
}

func newFakeSpaces() *fakeSpaces {
	return &fakeSpaces{spaces: map[string]Bounds{
		"R1": {Width: 10, Height: 10},
		"R2": {Width: 10, Height: 10},
	}}
}

func (f *fakeSpaces) LookupSpace(ctx context.Context, id string) (Space, error) {
	f.mu.Lock()
	f.calls++
	gate, err := f.gate, f.err
	b, ok := f.spaces[id]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Space{}, ctx.Err()
		}
	}
	if err != nil {
		return Space{}, err
	}
	if !ok {
		return Space{}, fmt.Errorf("lookup %q: %w", id, ErrSpaceNotFound)
	}
	return Space{ID: id, Name: id, Bounds: b}, nil
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// spawnQueue hands out spawn points in order, then falls back to the origin.
type spawnQueue struct {
	mu     sync.Mutex
	points []Position
}

func (q *spawnQueue) next(Bounds) Position {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.points) == 0 {
		return Position{}
	}
	p := q.points[0]
	q.points = q.points[1:]
	return p
}

type testHub struct {
	*Hub
	spaces *fakeSpaces
	clock  *fakeClock
	spawns *spawnQueue
	ids    int
}

func newTestHub(spawns ...Position) *testHub {
	th := &testHub{
		spaces: newFakeSpaces(),
		clock:  newFakeClock(),
		spawns: &spawnQueue{points: spawns},
	}
	var idMu sync.Mutex
	th.Hub = NewHub(th.spaces, Options{
		IdleCheckInterval: time.Hour,
		IdleTimeout:       5 * time.Minute,
		JoinTimeout:       200 * time.Millisecond,
		Now:               th.clock.Now,
		Spawn:             th.spawns.next,
		NewID: func() string {
			idMu.Lock()
			defer idMu.Unlock()
			th.ids++
			return fmt.Sprintf("s%d", th.ids)
		},
	}, nil)
	return th
}

func (th *testHub) connect() (*Session, *fakeConn) {
	conn := &fakeConn{}
	sess := th.NewSession(conn, Identity{})
	th.Relay().Register(sess.ID(), conn, "")
	return sess, conn
}

func frame(typ, payload string) []byte {
	return []byte(`{"type":"` + typ + `","payload":` + payload + `}`)
}

func joinFrame(space string) []byte {
	return frame("join", `{"spaceId":"`+space+`"}`)
}

func moveFrame(x, y int) []byte {
	return frame("move", fmt.Sprintf(`{"x":%d,"y":%d}`, x, y))
}
