package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// ErrUnknownMethod is returned when no handler is registered under a name.
var ErrUnknownMethod = errors.New("unknown method")

// Handler serves one named operation.
type Handler func(ctx context.Context, params []json.RawMessage) (any, error)

// Bridge is a registry of named operations.
type Bridge struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New creates an empty bridge.
func New() *Bridge {
	return &Bridge{handlers: make(map[string]Handler)}
}

// Provide registers h under name. Names can only be registered once.
func (b *Bridge) Provide(name string, h Handler) error {
	if name == "" {
		return errors.New("method name is required")
	}
	if h == nil {
		return fmt.Errorf("handler for %q is nil", name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.handlers[name]; exists {
		return fmt.Errorf("method %q already provided", name)
	}
	b.handlers[name] = h
	return nil
}

// Call dispatches to the handler registered under name.
func (b *Bridge) Call(ctx context.Context, name string, params []json.RawMessage) (any, error) {
	b.mu.RLock()
	h, ok := b.handlers[name]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	return h(ctx, params)
}

// Methods returns the registered method names, sorted.
func (b *Bridge) Methods() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IntParam decodes positional parameter i as an integer. JSON numbers,
// numeric strings and booleans are accepted, since controllers are loose
// about how they send pin levels.
func IntParam(params []json.RawMessage, i int) (int, error) {
	if i >= len(params) {
		return 0, fmt.Errorf("missing parameter %d", i)
	}
	raw := params[i]

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if v, err := n.Int64(); err == nil {
			return int(v), nil
		}
		if f, err := n.Float64(); err == nil {
			return int(f), nil
		}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("parameter %d: %q is not an integer", i, s)
		}
		return v, nil
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}

	return 0, fmt.Errorf("parameter %d: %s is not an integer", i, string(raw))
}

// StringParam decodes optional positional parameter i as a string, returning
// def when it is absent or null.
func StringParam(params []json.RawMessage, i int, def string) (string, error) {
	if i >= len(params) || string(params[i]) == "null" {
		return def, nil
	}
	var s string
	if err := json.Unmarshal(params[i], &s); err != nil {
		return "", fmt.Errorf("parameter %d: %w", i, err)
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}
