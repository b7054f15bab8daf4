package interaction

import (
	"sync"

	"github.com/rendis/attackchain/pkg/schema"
)

// ValidTransitions lists the legal gesture transitions. Every gesture
// starts from and returns to Idle; a gesture may update its own payload
// (self-transition) but never switch directly to another gesture.
var ValidTransitions = map[Kind][]Kind{
	KindIdle:         {KindDragging, KindConnecting, KindPanning, KindBoxSelecting},
	KindDragging:     {KindDragging, KindIdle},
	KindConnecting:   {KindConnecting, KindIdle},
	KindPanning:      {KindPanning, KindIdle},
	KindBoxSelecting: {KindBoxSelecting, KindIdle},
}

// TransitionHook is called around a state change between distinct kinds.
type TransitionHook func(from, to Kind)

type hookKey struct {
	from, to Kind
}

// machine holds the current gesture state and enforces ValidTransitions.
type machine struct {
	mu     sync.Mutex
	state  State
	before map[hookKey][]TransitionHook
	after  map[hookKey][]TransitionHook
	any    []TransitionHook
}

func newMachine() *machine {
	return &machine{
		state:  Idle{},
		before: make(map[hookKey][]TransitionHook),
		after:  make(map[hookKey][]TransitionHook),
	}
}

// OnBefore registers a hook called before a from -> to change.
func (m *machine) OnBefore(from, to Kind, hook TransitionHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := hookKey{from, to}
	m.before[key] = append(m.before[key], hook)
}

// OnAfter registers a hook called after a from -> to change.
func (m *machine) OnAfter(from, to Kind, hook TransitionHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := hookKey{from, to}
	m.after[key] = append(m.after[key], hook)
}

// OnAny registers a hook called after every change of kind.
func (m *machine) OnAny(hook TransitionHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.any = append(m.any, hook)
}

func (m *machine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// transition moves to next or returns INVALID_TRANSITION leaving the
// current state untouched. Hooks only run when the kind changes.
func (m *machine) transition(next State) error {
	m.mu.Lock()
	from, to := m.state.Kind(), next.Kind()
	if !isValidTransition(from, to) {
		m.mu.Unlock()
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid gesture transition: %s -> %s", from, to).
			WithDetails(map[string]any{"from": string(from), "to": string(to)})
	}
	if from == to {
		m.state = next
		m.mu.Unlock()
		return nil
	}
	key := hookKey{from, to}
	before := append([]TransitionHook(nil), m.before[key]...)
	after := append([]TransitionHook(nil), m.after[key]...)
	after = append(after, m.any...)
	m.mu.Unlock()

	for _, hook := range before {
		hook(from, to)
	}
	m.mu.Lock()
	m.state = next
	m.mu.Unlock()
	for _, hook := range after {
		hook(from, to)
	}
	return nil
}

func isValidTransition(from, to Kind) bool {
	for _, a := range ValidTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}
