// Package bridge couples a long-running remote tool invocation, the
// elicitation callback the transport may fire inside it, and the out-of-band
// answer a human submits later, without losing or reordering events and
// without one session's activity touching another's.
//
// The moving pieces, per session:
//
//   - an event queue carrying everything a consumer may observe, closed
//     exactly once after the terminal event;
//   - a single-assignment answer slot that suspends an in-flight elicitation
//     until a human answers;
//   - a lazily established transport connection held open by a background
//     goroutine for as long as the transport stays healthy.
//
// StartTool allocates (or replaces) the session's event queue before it
// returns, so an Attach issued immediately afterwards is guaranteed to find
// it; the connection, the tool call and the terminal event all happen on a
// background goroutine the caller never waits on.
//
// There is deliberately no timeout on an unanswered elicitation: a human who
// never answers leaves the invocation suspended until the manager is closed.
// Callers that need an upper bound must enforce it upstream.
package bridge
