// Package store defines the persistence interfaces for the scheduler's two
// owned records: the per-(student, item) memory state and the practice
// session. Implementations live under internal/platform; services depend only
// on these interfaces.
//
// Memory-state writes are guarded by optimistic versioning: every update
// names the version it read, and the store rejects the write with
// ErrVersionConflict when the stored version has moved on. Session cursor
// advancement is guarded the same way by the expected cursor value. This is
// the sole concurrency safety net; there are no global locks.
package store
