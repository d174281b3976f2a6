// ABOUTME: Package doc for internal/state
// ABOUTME: Describes the SQLite-backed persistence layer for room state

// Package state persists room conversation state to SQLite so the bot
// survives restarts without forgetting clear cursors, backend/model
// selections, role choices, or per-account message counters.
//
// The in-memory model in internal/room stays authoritative at runtime;
// this store is a write-through mirror loaded once at startup.
package state
