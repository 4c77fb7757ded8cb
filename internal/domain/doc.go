// Package domain defines the core business entities of the spaced-repetition
// scheduler: the per-student memory state of each learning item, the practice
// session record, and the summary emitted when a session completes.
//
// Entities validate themselves and are treated as immutable by the services
// that orchestrate them: updates produce new instances rather than mutating
// stored ones. Persistence is handled by the store layer; the algorithm that
// evolves memory state lives in the fsrs subpackage.
package domain
