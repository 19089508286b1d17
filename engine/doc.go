// Package engine implements the fuzzy-index core: the persistent variant
// index, the record store, the serialized mutator that keeps the two in
// agreement, and the candidate-retrieval lookup path.
//
// # Write path
//
// Every insert and remove commits exactly one atomic batch against the kv
// engine, spanning the record change, every affected variant posting set,
// and the id allocator. A crash before the commit leaves the store as if the
// operation never happened; a crash after leaves it fully applied. Mutations
// are serialized by a single lock because posting sets are read-modify-write
// shared state; lookups never take that lock.
//
// # Read path
//
// A fuzzy lookup generates the query's deletion variants, unions the posting
// sets they map to, and filters the deduplicated candidates with the
// caller-supplied distance function. Candidate completeness holds when the
// tolerance is within the store's deletion radius and the metric is
// consistent with deletion distance (true edit distance is).
package engine
