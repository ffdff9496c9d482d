package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNoEventChannel is returned to the transport when an elicitation arrives
// for a session that never had a stream started. The transport is expected to
// fail the enclosing tool invocation with it.
var ErrNoEventChannel = errors.New("no event channel for session")

// sessionNotFoundMsg is the one locally synthesized error a consumer can see:
// attaching to a session that was never started.
const sessionNotFoundMsg = "Session not found"

// systemSessionID is the shared session used for metadata calls that are not
// tied to any user conversation.
const systemSessionID = "system-tool-lister"

const defaultKeepalive = 30 * time.Second

// Manager is the session-scoped elicitation bridge. It owns, per session id:
// at most one transport connection, at most one in-flight tool run, its event
// queue, and at most one pending answer slot. All registries are in-memory
// and lost on process exit.
type Manager struct {
	log       *slog.Logger
	transport Transport
	keepalive time.Duration

	// ctx bounds every background unit; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	// mu guards only the create/lookup/delete decisions on the registries.
	// Steady-state queue and slot traffic is lock-free: each is driven by one
	// background unit plus one external consumer or submitter.
	mu     sync.Mutex
	conns  map[string]*conn
	queues map[string]*eventQueue
	slots  map[string]*answerSlot
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. If not provided, logs are discarded.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithKeepalive sets the interval at which idle session connections are
// health-checked.
func WithKeepalive(d time.Duration) Option {
	return func(m *Manager) { m.keepalive = d }
}

// NewManager constructs a bridge over the given transport. The manager is
// ready for use immediately; connections are established lazily per session.
func NewManager(transport Transport, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		log:       slog.New(slog.DiscardHandler),
		transport: transport,
		keepalive: defaultKeepalive,
		ctx:       ctx,
		cancel:    cancel,
		conns:     make(map[string]*conn),
		queues:    make(map[string]*eventQueue),
		slots:     make(map[string]*answerSlot),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Close tears down every session's connection loop. In-flight runs observe
// the cancellation, publish their terminal error events and close their
// streams; suspended elicitation handlers unblock with an error.
func (m *Manager) Close() error {
	m.cancel()
	return nil
}

// StartTool begins a tool run for the session. It is synchronous up through
// swapping in a fresh event queue, so an Attach issued immediately after
// StartTool returns always finds the channel; everything else happens on a
// background goroutine the caller does not wait on.
//
// Starting a session id that already ran replaces its queue outright: unread
// events from the previous run are discarded, most recent run wins.
func (m *Manager) StartTool(sessionID, tool string, args map[string]any) {
	q := newEventQueue()
	m.mu.Lock()
	m.queues[sessionID] = q
	m.mu.Unlock()

	go m.run(sessionID, q, tool, args)
}

// run drives ensure-connection, invoke-tool, publish-terminal for one tool
// run. It publishes to the queue captured at start, not whatever queue is
// currently registered, so a restart cannot steal this run's terminal event.
// The deferred Close emits the sentinel exactly once on every path out,
// including a panic unwound through the recover barrier above it.
func (m *Manager) run(sessionID string, q *eventQueue, tool string, args map[string]any) {
	defer q.Close()
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("bridge.tool.panic",
				slog.String("session_id", sessionID),
				slog.String("tool", tool),
				slog.Any("panic", r))
			q.Publish(errorEvent(fmt.Sprintf("tool %s panicked: %v", tool, r)))
		}
	}()

	log := m.log.With(slog.String("session_id", sessionID), slog.String("tool", tool))

	tc, err := m.ensure(m.ctx, sessionID)
	if err != nil {
		log.Error("bridge.session.err", slog.String("err", err.Error()))
		q.Publish(errorEvent(fmt.Sprintf("failed to establish session %s: %v", sessionID, err)))
		return
	}

	log.Debug("bridge.tool.call")
	text, err := tc.CallTool(m.ctx, tool, args)
	if err != nil {
		log.Error("bridge.tool.err", slog.String("err", err.Error()))
		q.Publish(errorEvent(fmt.Sprintf("error executing tool %s: %v", tool, err)))
		return
	}
	log.Debug("bridge.tool.done")
	q.Publish(resultEvent(text))
}

// handleElicit is the interruption handler bound to a session's connection.
// It runs on the transport's goroutine, inside the suspended tool call:
// register a fresh answer slot, publish the elicitation event, block until a
// human answers, then translate the answer into the transport's acceptance
// shape. Any error propagates to the transport and fails the invocation.
func (m *Manager) handleElicit(ctx context.Context, sessionID string, req *ElicitRequest) (*ElicitOutcome, error) {
	log := m.log.With(slog.String("session_id", sessionID), slog.String("kind", string(req.Kind)))

	slot := newAnswerSlot()
	m.mu.Lock()
	if _, stale := m.slots[sessionID]; stale {
		// Protocol construction means at most one live elicitation per
		// session; a leftover slot is from a failed earlier run.
		log.Warn("bridge.elicit.slot.replaced")
	}
	m.slots[sessionID] = slot
	q := m.queues[sessionID]
	m.mu.Unlock()

	if q == nil {
		m.mu.Lock()
		if m.slots[sessionID] == slot {
			delete(m.slots, sessionID)
		}
		m.mu.Unlock()
		log.Error("bridge.elicit.nochannel")
		return nil, fmt.Errorf("%w: %s", ErrNoEventChannel, sessionID)
	}

	q.Publish(elicitationEvent(req.Kind, req.Payload))
	log.Debug("bridge.elicit.published")

	answer, err := slot.Await(ctx)

	m.mu.Lock()
	if m.slots[sessionID] == slot {
		delete(m.slots, sessionID)
	}
	m.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("awaiting answer for session %q: %w", sessionID, err)
	}
	log.Debug("bridge.elicit.resolved")

	if req.Kind == ElicitKindURL {
		// The human acted out-of-band; there is no content to carry back.
		return &ElicitOutcome{Accepted: true}, nil
	}
	return &ElicitOutcome{Accepted: true, Content: answer}, nil
}

// SubmitAnswer resolves the session's pending elicitation, if any. A stale or
// repeated submission is tolerated and only logged: humans double-submit, and
// the handler may have failed upstream before the answer arrived.
func (m *Manager) SubmitAnswer(sessionID string, answer map[string]any) {
	m.mu.Lock()
	slot := m.slots[sessionID]
	m.mu.Unlock()

	if slot == nil {
		m.log.Warn("bridge.submit.orphan", slog.String("session_id", sessionID))
		return
	}
	if !slot.Resolve(answer) {
		m.log.Warn("bridge.submit.duplicate", slog.String("session_id", sessionID))
	}
}

// Stream yields one session's events in publish order. Next returns io.EOF
// once the terminal event has been consumed and the channel is closed.
type Stream struct {
	q *eventQueue
}

// Next returns the next event, blocking until one is available, the stream
// ends (io.EOF) or ctx is done. A consumer may stop calling Next at any
// point; the underlying queue keeps accumulating for a later re-attachment.
func (s *Stream) Next(ctx context.Context) (Event, error) {
	return s.q.Next(ctx)
}

// Attach returns the session's event stream. Attaching to an unknown session
// yields a single synthesized error event and then ends; this is the only
// case where an error is produced locally rather than forwarded from a run.
// Re-attaching after a consumer stopped reading sees only events still
// unread: there is no replay buffer.
func (m *Manager) Attach(sessionID string) *Stream {
	m.mu.Lock()
	q := m.queues[sessionID]
	m.mu.Unlock()

	if q == nil {
		m.log.Warn("bridge.attach.unknown", slog.String("session_id", sessionID))
		q = newEventQueue()
		q.Publish(errorEvent(sessionNotFoundMsg))
		q.Close()
	}
	return &Stream{q: q}
}

// ListTools reports the remote tool catalog via a shared system session.
func (m *Manager) ListTools(ctx context.Context) ([]ToolInfo, error) {
	tc, err := m.ensure(ctx, systemSessionID)
	if err != nil {
		return nil, err
	}
	return tc.ListTools(ctx)
}
