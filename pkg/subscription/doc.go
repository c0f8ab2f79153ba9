// Package subscription implements the local dispatch tables of an SMQ client.
//
// Registry routes inbound PUBLISH frames to message handlers. Handlers are
// registered either for a whole topic or for one subtopic of a topic. A
// message with a subtopic ID goes to that subtopic's handlers if any exist
// and otherwise to the topic-wide handlers.
//
// Observers routes CHANGE frames to change handlers. Observations of
// ephemeral IDs are one-shot: the broker reports a client's ephemeral ID
// only once, when that client disconnects.
//
// # Lifecycle
//
// Subscriptions do NOT survive connection loss. Both tables are reset on
// every teardown and must be rebuilt after reconnecting.
//
// The tables do not lock; the owning client serializes access.
package subscription
