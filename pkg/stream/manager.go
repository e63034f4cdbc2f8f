package stream

import (
	"context"
	"sync"

	"github.com/peakyragnar/nova/pkg/metrics"
)

// Role distinguishes a connection's leader timeline cursor from its
// follower output-stream cursors, per spec.md §4.6.
type Role string

const (
	RoleLeader   Role = "leader"
	RoleFollower Role = "follower"
)

type cursorKey struct {
	connectionID string
	role         Role
}

type activeCursor struct {
	cancel context.CancelFunc
	cursor *Cursor
}

// Manager owns fencing: at most one live Cursor goroutine per
// (connectionID, role). Starting a new cursor for a key cancels
// whatever cursor currently holds it, per spec.md §4.6's "after a
// seek or rate change that restarts the cursor, the old cursor is
// cancelled and a new one starts with a fresh token."
type Manager struct {
	mu     sync.Mutex
	active map[cursorKey]*activeCursor
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{active: make(map[cursorKey]*activeCursor)}
}

// Start cancels any existing cursor for (connectionID, role) and
// starts c in its place, returning the chunk channel and a cancel
// function the caller can use to stop it early.
func (m *Manager) Start(ctx context.Context, connectionID string, role Role, c *Cursor) (<-chan Chunk, context.CancelFunc, error) {
	key := cursorKey{connectionID: connectionID, role: role}

	cctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if prev, ok := m.active[key]; ok {
		prev.cancel()
	}
	m.active[key] = &activeCursor{cancel: cancel, cursor: c}
	m.mu.Unlock()

	chunks, err := c.Run(cctx)
	if err != nil {
		cancel()
		m.clearIfCurrent(key, c)
		return nil, cancel, err
	}

	metrics.CursorStarted(string(role))
	wrapped := make(chan Chunk)
	go func() {
		defer close(wrapped)
		defer metrics.CursorStopped(string(role))
		for chunk := range chunks {
			if cctx.Err() != nil {
				continue
			}
			metrics.ChunkEmitted(len(chunk.Events))
			select {
			case wrapped <- chunk:
			case <-cctx.Done():
			}
		}
		m.clearIfCurrent(key, c)
	}()

	return wrapped, cancel, nil
}

// Cancel stops the active cursor for (connectionID, role), if any.
func (m *Manager) Cancel(connectionID string, role Role) {
	key := cursorKey{connectionID: connectionID, role: role}
	m.mu.Lock()
	prev, ok := m.active[key]
	delete(m.active, key)
	m.mu.Unlock()
	if ok {
		prev.cancel()
	}
}

// Leader returns the active leader cursor for a connection, for
// Follower cursors to sample CurrentTime from. Returns nil if there
// is no active leader.
func (m *Manager) Leader(connectionID string) *Cursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	ac, ok := m.active[cursorKey{connectionID: connectionID, role: RoleLeader}]
	if !ok {
		return nil
	}
	return ac.cursor
}

func (m *Manager) clearIfCurrent(key cursorKey, c *Cursor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ac, ok := m.active[key]; ok && ac.cursor == c {
		delete(m.active, key)
	}
}
