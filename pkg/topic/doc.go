// Package topic holds the per-connection name to ID state of an SMQ client.
//
// Registry caches the broker-assigned IDs of topics and subtopics in both
// directions. Pending collapses concurrent requests for the same unresolved
// name into a single wire request.
//
// Neither type locks. Both are owned by the client and mutated only while
// the client's mutex is held, so that recording an acknowledged ID and
// releasing its waiters happen atomically.
package topic
