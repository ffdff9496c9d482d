// Package intent maps free-text chat messages onto tool invocations with
// ordered keyword rules. It is deliberately dumb: the first rule with a
// matching keyword wins, and anything unmatched falls through to an echo
// tool carrying the raw message.
package intent

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Rule maps keyword matches to a tool invocation. When ArgKey is set the full
// message is copied into the arguments under that key; Args are static
// arguments merged in first.
type Rule struct {
	Contains []string       `yaml:"contains"`
	Tool     string         `yaml:"tool"`
	ArgKey   string         `yaml:"arg_key,omitempty"`
	Args     map[string]any `yaml:"args,omitempty"`
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

const (
	defaultTool   = "simple_tool"
	defaultArgKey = "message"
)

// Classifier resolves a message to (tool, arguments). Safe for concurrent
// use; rules may be swapped at runtime (see Watch).
type Classifier struct {
	mu    sync.RWMutex
	rules []Rule
}

// New builds a classifier from explicit rules.
func New(rules ...Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Default returns the built-in ruleset for the ticketdesk demo tools.
func Default() *Classifier {
	return New(
		Rule{Contains: []string{"ticket"}, Tool: "create_ticket", ArgKey: "initial_description"},
		Rule{Contains: []string{"login", "auth"}, Tool: "login"},
		Rule{Contains: []string{"book", "appointment"}, Tool: "book_appointment"},
		Rule{Contains: []string{"debug"}, Tool: "debug_elicitation"},
	)
}

// Load builds a classifier from a YAML rules file.
func Load(path string) (*Classifier, error) {
	c := &Classifier{}
	if err := c.reload(path); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Classifier) reload(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read intent rules: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse intent rules %s: %w", path, err)
	}
	for i, r := range f.Rules {
		if r.Tool == "" {
			return fmt.Errorf("intent rule %d: missing tool", i)
		}
	}
	c.mu.Lock()
	c.rules = f.Rules
	c.mu.Unlock()
	return nil
}

// Classify resolves message to a tool name and arguments. Matching is
// case-insensitive; rules are evaluated in order.
func (c *Classifier) Classify(message string) (string, map[string]any) {
	lowered := strings.ToLower(message)

	c.mu.RLock()
	rules := c.rules
	c.mu.RUnlock()

	for _, r := range rules {
		for _, kw := range r.Contains {
			if strings.Contains(lowered, strings.ToLower(kw)) {
				args := make(map[string]any, len(r.Args)+1)
				for k, v := range r.Args {
					args[k] = v
				}
				if r.ArgKey != "" {
					args[r.ArgKey] = message
				}
				return r.Tool, args
			}
		}
	}
	return defaultTool, map[string]any{defaultArgKey: message}
}
