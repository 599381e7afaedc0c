package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/statekit"
	"go.uber.org/zap"
)

// ErrBusy is returned by Begin when the user already has an operation in flight.
var ErrBusy = errors.New("another operation is already in progress")

// Slot states.
const (
	StateIdle     = "idle"
	StateInFlight = "in_flight"
	StateSuccess  = "success"
	StateFailed   = "failed"
)

const (
	eventStart   = "start"
	eventSucceed = "succeed"
	eventFail    = "fail"
)

// Kind names the operation occupying a slot.
type Kind string

const (
	KindSuggestions Kind = "generate_suggestions"
	KindPlan        Kind = "generate_plan"
	KindRegenerate  Kind = "regenerate_section"
	KindSavePlan    Kind = "save_plan"
)

// DefaultTTL bounds how long a crashed holder can block a user.
const DefaultTTL = 2 * time.Minute

// ttlMargin covers the store work around the single completion call an
// operation makes.
const ttlMargin = time.Minute

// TTLFor returns a lock TTL that outlives an operation whose completion call
// is bounded by completionTimeout.
func TTLFor(completionTimeout time.Duration) time.Duration {
	if completionTimeout <= 0 {
		return DefaultTTL
	}
	return completionTimeout + ttlMargin
}

type slotContext struct {
	UserID string
}

type slot struct {
	fsm       *statekit.Interpreter[slotContext]
	owner     *Op
	kind      Kind
	lastError string
	updatedAt time.Time
}

// Status is a snapshot of a user's slot.
type Status struct {
	State     string
	Kind      Kind
	LastError string
	UpdatedAt time.Time
}

// Tracker enforces at most one in-flight generate/regenerate/save per user.
// A second Begin while one is outstanding is rejected, never queued. The
// locker extends the rule across replicas; within a process a slot owned by
// an unfinished Op stays busy even after its lock has expired.
// Finished slots are dropped once they have been idle for a TTL.
type Tracker struct {
	locker Locker
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	slots     map[string]*slot
	lastSweep time.Time
}

// NewTracker creates a Tracker over locker.
func NewTracker(locker Locker, ttl time.Duration, logger *zap.Logger) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		locker: locker,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		slots:  make(map[string]*slot),
	}
}

func newSlotMachine(userID string) (*statekit.Interpreter[slotContext], error) {
	builder := statekit.NewMachine[slotContext]("operation-slot").
		WithInitial(statekit.StateID(StateIdle)).
		WithContext(slotContext{UserID: userID})

	builder.State(StateIdle).
		On(eventStart).Target(StateInFlight).
		Done()

	builder.State(StateInFlight).
		On(eventSucceed).Target(StateSuccess).
		On(eventFail).Target(StateFailed).
		Done()

	builder.State(StateSuccess).
		On(eventStart).Target(StateInFlight).
		Done()

	builder.State(StateFailed).
		On(eventStart).Target(StateInFlight).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build state machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return interpreter, nil
}

// must hold t.mu
func (t *Tracker) slotFor(userID string) (*slot, error) {
	if s, ok := t.slots[userID]; ok {
		return s, nil
	}
	fsm, err := newSlotMachine(userID)
	if err != nil {
		return nil, err
	}
	s := &slot{fsm: fsm, updatedAt: t.now()}
	t.slots[userID] = s
	return s, nil
}

// sweep drops finished slots idle for longer than the TTL. Must hold t.mu.
func (t *Tracker) sweep(now time.Time) {
	if now.Sub(t.lastSweep) < t.ttl {
		return
	}
	t.lastSweep = now
	for userID, s := range t.slots {
		if s.owner == nil && now.Sub(s.updatedAt) > t.ttl {
			delete(t.slots, userID)
		}
	}
}

func (s *slot) state() string {
	return string(s.fsm.State().Value)
}

// Begin claims the user's slot for kind. The caller must call Finish on the
// returned Op exactly once.
func (t *Tracker) Begin(ctx context.Context, userID string, kind Kind) (*Op, error) {
	lock, err := t.locker.Acquire(ctx, userID, t.ttl)
	if err != nil {
		if errors.Is(err, ErrLockNotAcquired) {
			t.logger.Info("operation rejected, slot busy", zap.String("user_id", userID), zap.String("kind", string(kind)))
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("failed to acquire operation slot: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.sweep(now)

	s, err := t.slotFor(userID)
	if err != nil {
		lock.Release(context.WithoutCancel(ctx))
		return nil, err
	}
	if s.owner != nil {
		// The previous holder outlived its lock and has not finished yet.
		lock.Release(context.WithoutCancel(ctx))
		t.logger.Warn("operation rejected, slot held past lock expiry",
			zap.String("user_id", userID),
			zap.String("kind", string(kind)),
			zap.String("held_by", string(s.kind)))
		return nil, ErrBusy
	}

	op := &Op{tracker: t, userID: userID, lock: lock, ctx: context.WithoutCancel(ctx)}
	s.fsm.Send(statekit.Event{Type: eventStart})
	s.owner = op
	s.kind = kind
	s.lastError = ""
	s.updatedAt = now

	return op, nil
}

// Status reports the user's slot. Unknown users are idle.
func (t *Tracker) Status(userID string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.slots[userID]
	if !ok {
		return Status{State: StateIdle}
	}
	return Status{State: s.state(), Kind: s.kind, LastError: s.lastError, UpdatedAt: s.updatedAt}
}

// Op is a claimed slot.
type Op struct {
	tracker *Tracker
	userID  string
	lock    Lock
	ctx     context.Context
	once    sync.Once
}

// Finish records the outcome and frees the slot. An Op that no longer owns
// the slot leaves its state alone.
func (o *Op) Finish(err error) {
	o.once.Do(func() {
		t := o.tracker

		t.mu.Lock()
		if s, ok := t.slots[o.userID]; ok && s.owner == o {
			if err != nil {
				s.fsm.Send(statekit.Event{Type: eventFail})
				s.lastError = err.Error()
			} else {
				s.fsm.Send(statekit.Event{Type: eventSucceed})
			}
			s.owner = nil
			s.updatedAt = t.now()
		}
		t.mu.Unlock()

		if relErr := o.lock.Release(o.ctx); relErr != nil {
			t.logger.Warn("failed to release operation slot", zap.String("user_id", o.userID), zap.Error(relErr))
		}
	})
}
