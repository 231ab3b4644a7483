package topic

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/elsabot/elsabot/pkg/dialog"
)

// ResetEntity, when set on a status by a hook, tells the session layer
// to discard the session after the current response is delivered.
const ResetEntity = "SESSION_RESET"

// HookFunc is a template side effect, run after its template is
// selected. Hooks mutate the status; a common one plants [ResetEntity].
type HookFunc func(s *dialog.Status)

// Hooks is a named registry of template side effects. Hook names are
// case-insensitive.
type Hooks struct {
	mu     sync.RWMutex
	funcs  map[string]HookFunc
	logger *slog.Logger
}

// NewHooks creates an empty hook registry.
func NewHooks(logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{funcs: make(map[string]HookFunc), logger: logger}
}

// Register binds a hook name to a function, replacing any previous
// binding.
func (h *Hooks) Register(name string, fn HookFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.funcs[strings.ToLower(name)] = fn
}

// Run executes the named hooks in order. Unknown names are logged and
// skipped; a template referencing a hook that was never registered is a
// data problem, not a crash.
func (h *Hooks) Run(names []string, s *dialog.Status) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, name := range names {
		fn, ok := h.funcs[strings.ToLower(name)]
		if !ok {
			h.logger.Warn("unknown hook", "hook", name)
			continue
		}
		fn(s)
	}
}

// Reset is the stock hook that plants [ResetEntity] on the status. Wire
// it under the name your goodbye templates reference.
func Reset(s *dialog.Status) {
	s.Entities[ResetEntity] = "1"
}
