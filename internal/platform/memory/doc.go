// Package memory provides in-memory implementations of the store interfaces.
// They are used by service tests and by embedded callers that do not need
// durability. All methods are safe for concurrent use; records are deep
// copied on the way in and out so callers never share mutable state with the
// store. WithTx is a pass-through: these stores have no transactions.
package memory
