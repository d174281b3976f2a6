// ABOUTME: Per-room conversation state and the manager that owns all rooms
// ABOUTME: One handle per room with its own lock; rooms process fully in parallel

package room

import (
	"context"
	"log/slog"
	"sync"
)

// Conversation is the mutable state of one room. The embedded mutex
// serializes event processing for the room: the dispatcher holds it for
// the entire handling of an event, including the backend call, so a
// command's effect is fully visible to the very next conversational turn
// and two overlapping backend requests can never be built from
// inconsistent context windows.
//
// All other methods and fields assume the lock is held.
type Conversation struct {
	sync.Mutex

	// ID is the protocol room identifier.
	ID string

	// BackendID and Model are the selected backend/model pair; both
	// empty until a model command succeeds.
	BackendID string
	Model     string

	// Role is the selected role name.
	Role string

	// Cursor is the event ID of the most recent clear command. Events
	// at or before the cursor are permanently out of scope for context
	// builds. Empty means the room start. The cursor only ever advances:
	// clearing always moves it to the room's current latest event.
	Cursor string

	counts   map[string]uint64
	notified map[string]struct{}
}

// Count returns the number of conversational turns the account has
// consumed in this room.
func (c *Conversation) Count(account string) uint64 {
	return c.counts[account]
}

// Increment adds one conversational turn for the account and returns
// the new count. Called exactly when a turn is about to reach a backend.
func (c *Conversation) Increment(account string) uint64 {
	if c.counts == nil {
		c.counts = make(map[string]uint64)
	}
	c.counts[account]++
	return c.counts[account]
}

// QuotaNotified reports whether the account has already been told its
// quota ran out in this room, and marks it if not. Used to notify once
// in direct conversations instead of repeating the notice.
func (c *Conversation) QuotaNotified(account string) bool {
	if _, done := c.notified[account]; done {
		return true
	}
	if c.notified == nil {
		c.notified = make(map[string]struct{})
	}
	c.notified[account] = struct{}{}
	return false
}

// Snapshot copies the persistable fields.
func (c *Conversation) Snapshot() *Snapshot {
	snap := &Snapshot{
		RoomID:    c.ID,
		BackendID: c.BackendID,
		Model:     c.Model,
		Role:      c.Role,
		Cursor:    c.Cursor,
		Counts:    make(map[string]uint64, len(c.counts)),
	}
	for account, n := range c.counts {
		snap.Counts[account] = n
	}
	return snap
}

// Snapshot is the persisted form of a room's conversation state.
type Snapshot struct {
	RoomID    string
	BackendID string
	Model     string
	Role      string
	Cursor    string
	Counts    map[string]uint64
}

// Store persists room conversation state across restarts. The manager
// works fine without one; persistence is optional.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	LoadAll(ctx context.Context) ([]*Snapshot, error)
}

// Manager owns the conversation state for every room the bot is in.
// Safe for concurrent use; each room's handle carries its own lock.
type Manager struct {
	mu          sync.RWMutex
	rooms       map[string]*Conversation
	defaultRole string
	store       Store
	logger      *slog.Logger
}

// NewManager creates a manager. store may be nil for purely in-memory
// operation; defaultRole seeds the role selection of new rooms.
func NewManager(defaultRole string, store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		rooms:       make(map[string]*Conversation),
		defaultRole: defaultRole,
		store:       store,
		logger:      logger.With("component", "rooms"),
	}
}

// Get returns the room's conversation handle, creating it with defaults
// on first use.
func (m *Manager) Get(roomID string) *Conversation {
	m.mu.RLock()
	c, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.rooms[roomID]; ok {
		return c
	}
	c = &Conversation{ID: roomID, Role: m.defaultRole}
	m.rooms[roomID] = c
	return c
}

// Restore loads persisted conversation state back into memory. Called
// once at startup, before any events are processed.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	snaps, err := m.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, snap := range snaps {
		c := &Conversation{
			ID:        snap.RoomID,
			BackendID: snap.BackendID,
			Model:     snap.Model,
			Role:      snap.Role,
			Cursor:    snap.Cursor,
			counts:    snap.Counts,
		}
		if c.Role == "" {
			c.Role = m.defaultRole
		}
		m.rooms[snap.RoomID] = c
	}
	m.logger.Info("room state restored", "rooms", len(snaps))
	return nil
}

// Persist writes the room's current state through to the store, if one
// is configured. Persistence failures are logged, never fatal: the
// in-memory state stays authoritative. The caller must hold c's lock.
func (m *Manager) Persist(ctx context.Context, c *Conversation) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, c.Snapshot()); err != nil {
		m.logger.Warn("failed to persist room state", "room", c.ID, "error", err)
	}
}
