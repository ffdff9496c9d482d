// Package bridgetest provides an in-memory bridge.Transport whose tools are
// scripted Go functions, for exercising the bridge without a real remote
// server.
package bridgetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/promptline/elicitbridge/bridge"
)

// ToolFunc is a scripted tool body. elicit suspends the call the way a real
// transport would: it does not return until the bridge's handler has an
// answer (or fails).
type ToolFunc func(ctx context.Context, args map[string]any, elicit bridge.ElicitHandlerFunc) (string, error)

type tool struct {
	info bridge.ToolInfo
	fn   ToolFunc
}

// Transport is a fake bridge.Transport. It records connection attempts so
// tests can assert establishment deduplication, and can be told to refuse the
// next N attempts.
type Transport struct {
	mu           sync.Mutex
	tools        map[string]tool
	order        []string
	connects     int
	failures     int
	connectDelay time.Duration
}

func NewTransport() *Transport {
	return &Transport{tools: make(map[string]tool)}
}

// AddTool registers a scripted tool.
func (t *Transport) AddTool(name, description string, fn ToolFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.tools[name]; !ok {
		t.order = append(t.order, name)
	}
	t.tools[name] = tool{info: bridge.ToolInfo{Name: name, Description: description}, fn: fn}
}

// FailNextConnects makes the next n Connect calls fail.
func (t *Transport) FailNextConnects(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = n
}

// SetConnectDelay makes every Connect take at least d, widening establishment
// races for tests that care about them.
func (t *Transport) SetConnectDelay(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connectDelay = d
}

// Connects reports how many Connect calls were made.
func (t *Transport) Connects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

// Connect implements bridge.Transport.
func (t *Transport) Connect(ctx context.Context, onElicit bridge.ElicitHandlerFunc) (bridge.ToolConn, error) {
	t.mu.Lock()
	t.connects++
	fail := t.failures > 0
	if fail {
		t.failures--
	}
	delay := t.connectDelay
	t.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("bridgetest: connection refused")
	}
	return &conn{transport: t, onElicit: onElicit}, nil
}

type conn struct {
	transport *Transport
	onElicit  bridge.ElicitHandlerFunc
	closed    atomic.Bool
}

func (c *conn) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if c.closed.Load() {
		return "", errors.New("bridgetest: connection closed")
	}
	c.transport.mu.Lock()
	tl, ok := c.transport.tools[name]
	c.transport.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("bridgetest: unknown tool %q", name)
	}
	return tl.fn(ctx, args, c.onElicit)
}

func (c *conn) ListTools(ctx context.Context) ([]bridge.ToolInfo, error) {
	if c.closed.Load() {
		return nil, errors.New("bridgetest: connection closed")
	}
	c.transport.mu.Lock()
	defer c.transport.mu.Unlock()
	infos := make([]bridge.ToolInfo, 0, len(c.transport.order))
	for _, name := range c.transport.order {
		infos = append(infos, c.transport.tools[name].info)
	}
	return infos, nil
}

func (c *conn) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return errors.New("bridgetest: connection closed")
	}
	return nil
}

func (c *conn) Close() error {
	c.closed.Store(true)
	return nil
}

var (
	_ bridge.Transport = (*Transport)(nil)
	_ bridge.ToolConn  = (*conn)(nil)
)
