// Package domain defines the evaluation entities shared by the API,
// the workers and the persistence layer: requests and their job payloads,
// evaluation records with their status machine, score sets and feedback.
//
// Types in this package carry no I/O. Invariants that must survive
// concurrent writers (monotonic status, result-iff-terminal) are checked
// here and enforced again by the store's update predicates.
package domain
