package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// conn tracks one session's connection attempt. ready is closed exactly once,
// after either tc or err has been set; waiters that find tc nil after ready
// must treat the attempt as failed.
type conn struct {
	ready chan struct{}
	tc    ToolConn
	err   error
}

// ensure returns the session's connection handle, establishing it if needed.
// Concurrent callers for the same id share a single attempt: whoever gets
// there first starts the background loop, everyone else just waits on the
// same readiness signal.
func (m *Manager) ensure(ctx context.Context, sessionID string) (ToolConn, error) {
	m.mu.Lock()
	c, ok := m.conns[sessionID]
	if !ok {
		c = &conn{ready: make(chan struct{})}
		m.conns[sessionID] = c
		go m.connectLoop(sessionID, c)
	}
	m.mu.Unlock()

	select {
	case <-c.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if c.tc == nil {
		if c.err != nil {
			return nil, c.err
		}
		return nil, fmt.Errorf("session %q: connection closed before ready", sessionID)
	}
	return c.tc, nil
}

// connectLoop is the long-lived background unit owning one session's
// connection. It opens the transport with an elicit handler bound to the
// session, registers the handle, signals readiness, and then holds the
// connection open until the transport fails or the manager shuts down, at
// which point it deregisters and exits. On setup failure readiness is still
// signaled so waiters unblock; they observe the absent handle as an error.
func (m *Manager) connectLoop(sessionID string, c *conn) {
	log := m.log.With(slog.String("session_id", sessionID))

	onElicit := func(ctx context.Context, req *ElicitRequest) (*ElicitOutcome, error) {
		return m.handleElicit(ctx, sessionID, req)
	}

	tc, err := m.transport.Connect(m.ctx, onElicit)
	if err != nil {
		log.Error("bridge.connect.err", slog.String("err", err.Error()))
		c.err = fmt.Errorf("connect session %q: %w", sessionID, err)
		m.mu.Lock()
		delete(m.conns, sessionID)
		m.mu.Unlock()
		close(c.ready)
		return
	}

	c.tc = tc
	close(c.ready)
	log.Debug("bridge.connect.ready")

	ticker := time.NewTicker(m.keepalive)
	defer ticker.Stop()

hold:
	for {
		select {
		case <-m.ctx.Done():
			break hold
		case <-ticker.C:
			if err := tc.Ping(m.ctx); err != nil {
				log.Warn("bridge.connect.lost", slog.String("err", err.Error()))
				break hold
			}
		}
	}

	// The queue (and any buffered events) deliberately survives: an attached
	// consumer may still be draining the run that used this connection.
	m.mu.Lock()
	if m.conns[sessionID] == c {
		delete(m.conns, sessionID)
	}
	m.mu.Unlock()
	_ = tc.Close()
	log.Debug("bridge.connect.closed")
}
