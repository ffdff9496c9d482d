package bridge

import "context"

// ElicitRequest is the transport-neutral form of a mid-call interruption: the
// remote side cannot finish the current invocation until a human supplies
// more input.
type ElicitRequest struct {
	Kind    ElicitKind
	Message string
	// Payload is forwarded verbatim as the elicitation event's data: the
	// requested schema for form elicitations, the URL (and any correlation
	// state) for url elicitations.
	Payload map[string]any
}

// ElicitOutcome resumes a suspended invocation. For url elicitations Content
// is nil: the human acted out-of-band and the remote side verifies the result
// itself.
type ElicitOutcome struct {
	Accepted bool
	Content  map[string]any
}

// ElicitHandlerFunc is invoked by a transport, synchronously within a tool
// call, each time the remote side interrupts that call. The call does not
// proceed until the handler returns.
type ElicitHandlerFunc func(ctx context.Context, req *ElicitRequest) (*ElicitOutcome, error)

// ToolInfo describes one remotely invocable tool.
type ToolInfo struct {
	Name        string
	Description string
}

// ToolConn is an established connection to the remote tool executor. A
// connection belongs to exactly one session; the bridge never shares one
// across sessions.
type ToolConn interface {
	// CallTool invokes a tool and returns its terminal text. The transport
	// may invoke the connection's elicit handler zero or more times,
	// sequentially, before CallTool returns.
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)

	ListTools(ctx context.Context) ([]ToolInfo, error)

	// Ping probes connection health; an error means the connection is no
	// longer usable.
	Ping(ctx context.Context) error

	Close() error
}

// Transport opens session-scoped connections to the remote tool executor.
// Implementations must invoke onElicit from within CallTool and await it
// before letting the call proceed.
type Transport interface {
	Connect(ctx context.Context, onElicit ElicitHandlerFunc) (ToolConn, error)
}
