package tracker

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rudransh-shrivastava/rtracker/internal/db"
	"github.com/rudransh-shrivastava/rtracker/internal/logger"
	"github.com/rudransh-shrivastava/rtracker/internal/store"
)

type sentPacket struct {
	data []byte
	addr net.Addr
}

// fakeConn records every response instead of sending it.
type fakeConn struct {
	mu   sync.Mutex
	sent []sentPacket
}

func (c *fakeConn) ReadFrom(p []byte) (int, net.Addr, error) {
	return 0, nil, net.ErrClosed
}

func (c *fakeConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentPacket{data: append([]byte(nil), p...), addr: addr})
	return len(p), nil
}

func (c *fakeConn) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6969}
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) packets() []sentPacket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentPacket(nil), c.sent...)
}

// failingStore fails every call.
type failingStore struct {
	prunes int
	mu     sync.Mutex
}

var errBroken = &store.Error{Op: "test", Err: errors.New("disk on fire")}

func (s *failingStore) Upsert(context.Context, []byte, string, uint16, []byte, int64) error {
	return errBroken
}

func (s *failingStore) SwarmFor(context.Context, []byte) (store.Swarm, error) {
	return store.Swarm{}, errBroken
}

func (s *failingStore) Prune(context.Context, time.Duration) (int64, error) {
	s.mu.Lock()
	s.prunes++
	s.mu.Unlock()
	return 0, errBroken
}

func (s *failingStore) pruneCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prunes
}

func newTestStore(t *testing.T) *store.SwarmStore {
	t.Helper()
	target := "file:" + filepath.Join(t.TempDir(), "tracker.sqlite3") +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	gdb, err := db.Open(target, 4)
	if err != nil {
		t.Fatalf("Failed to open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	return store.NewSwarmStore(gdb)
}

func newTestServer(t *testing.T, swarm store.SwarmRepository) (*Server, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	srv := newServer(Config{Logger: logger.Discard()}, swarm, conn)
	return srv, conn
}
