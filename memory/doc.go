// Package memory contains concrete MemoryStore implementations. The store
// interface and SearchResult type reside in the core package; depend on
// core.MemoryStore in your code and select an implementation at wiring time.
//
// InMemoryStore ranks entries by term-frequency cosine similarity, which is
// enough for demos and tests; swap in a vector index for semantic recall.
package memory
