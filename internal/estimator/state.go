package estimator

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/banshee-data/vision.nav/internal/timeutil"
)

// State is the operating state of the pipeline.
type State int

const (
	// Faulting means the last frame was rejected and a re-init is pending.
	Faulting State = iota
	// Initializing means the engine was reset and the bias is being learned.
	Initializing
	// Running means estimates are fused and published.
	Running
)

func (s State) String() string {
	switch s {
	case Faulting:
		return "faulting"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event drives a state transition.
type Event int

const (
	EventBiasReady Event = iota
	EventReject
	EventReinit
)

func (e Event) String() string {
	switch e {
	case EventBiasReady:
		return "bias-ready"
	case EventReject:
		return "reject"
	case EventReinit:
		return "reinit"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

var transitions = map[State]map[Event]State{
	Initializing: {
		EventBiasReady: Running,
		EventReject:    Faulting,
		EventReinit:    Initializing,
	},
	Running: {
		EventReject: Faulting,
		EventReinit: Initializing,
	},
	Faulting: {
		EventReinit: Initializing,
	},
}

// Machine is the re-init state machine. Re-init requests are debounced by a
// single-token limiter refilled once per cooldown. It is not safe for
// concurrent use; the frame goroutine owns it.
type Machine struct {
	clock    timeutil.Clock
	cooldown time.Duration
	limiter  *rate.Limiter
	state    State
	entered  time.Time
}

// NewMachine returns a machine in Faulting, so the first frame or Start
// performs a re-init.
func NewMachine(clock timeutil.Clock, cooldown time.Duration) *Machine {
	return &Machine{
		clock:    clock,
		cooldown: cooldown,
		limiter:  newDebounce(cooldown),
		state:    Faulting,
		entered:  clock.Now(),
	}
}

func newDebounce(cooldown time.Duration) *rate.Limiter {
	if cooldown <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(cooldown), 1)
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Entered returns when the current state was entered.
func (m *Machine) Entered() time.Time { return m.entered }

// Fire applies ev. An event the current state does not define returns
// ErrInvalidTransition and leaves the machine unchanged.
func (m *Machine) Fire(ev Event) (State, error) {
	next, ok := transitions[m.state][ev]
	if !ok {
		return m.state, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev, m.state)
	}
	m.state = next
	m.entered = m.clock.Now()
	return next, nil
}

// RequestReinit moves to Initializing if the cooldown since the last
// executed re-init has passed. It reports whether the re-init ran.
func (m *Machine) RequestReinit() bool {
	if !m.limiter.AllowN(m.clock.Now(), 1) {
		return false
	}
	_, err := m.Fire(EventReinit)
	return err == nil
}

// ForceReinit moves to Initializing regardless of the cooldown and starts a
// new cooldown period.
func (m *Machine) ForceReinit() {
	m.limiter = newDebounce(m.cooldown)
	m.limiter.AllowN(m.clock.Now(), 1)
	_, _ = m.Fire(EventReinit)
}

// ExtendWindow restarts the timer of the current state without changing it.
func (m *Machine) ExtendWindow() {
	m.entered = m.clock.Now()
}
