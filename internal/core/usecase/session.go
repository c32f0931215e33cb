package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/core/ports"
	"github.com/kirillkom/grantflow/internal/core/validation"
)

// Dependencies are shared by every session of a service.
type Dependencies struct {
	Gateway            ports.AgentGateway
	Prober             ports.GatewayProber
	Locations          *validation.LocationValidator
	Scorer             *validation.Scorer
	Metrics            ports.WorkflowMetrics
	Logger             *slog.Logger
	GrantSearchEnabled bool
	Now                func() time.Time
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Locations == nil {
		d.Locations = validation.DefaultLocationValidator()
	}
	if d.Scorer == nil {
		d.Scorer = validation.NewScorer(0)
	}
	if d.Metrics == nil {
		d.Metrics = ports.NoopWorkflowMetrics{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Session is one guided application. All operations on a session are
// serialized; step computations run outside the lock and are discarded if the
// session was reset meanwhile.
type Session struct {
	id   string
	cfg  domain.SessionConfig
	deps Dependencies

	mu         sync.Mutex
	state      domain.StepState
	record     domain.WorkflowRecord
	approved   map[domain.StepState]bool
	busy       bool
	generation uint64
	cancel     context.CancelFunc
	createdAt  time.Time
	updatedAt  time.Time
}

func NewSession(id string, cfg domain.SessionConfig, deps Dependencies) *Session {
	deps = deps.withDefaults()
	now := deps.Now().UTC()
	return &Session{
		id:        id,
		cfg:       cfg,
		deps:      deps,
		state:     domain.StepOrgVerification,
		approved:  make(map[domain.StepState]bool),
		createdAt: now,
		updatedAt: now,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Config() domain.SessionConfig {
	return s.cfg
}

func (s *Session) State() domain.StepState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Advance evaluates the current step's approval gate.
func (s *Session) Advance(_ context.Context, approved bool) (domain.StepOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	if s.busy {
		return domain.StepOutcome{}, s.reject(from, domain.WrapError(domain.ErrStepInFlight, "workflow.advance", fmt.Errorf("%s is still computing", from)))
	}
	next, record, status, err := Advance(s.state, s.record, approved)
	if err != nil {
		return domain.StepOutcome{}, s.reject(from, err)
	}
	if status == domain.AdvanceStatusAdvanced {
		s.approved[from] = true
		s.state = next
		s.record = record
		s.touch()
		s.deps.Logger.Info("step_advanced", "session_id", s.id, "from", from, "to", next)
	} else {
		s.deps.Logger.Debug("step_pending_approval", "session_id", s.id, "step", from)
	}
	s.deps.Metrics.RecordTransition(from, s.state, status)
	return s.outcomeLocked(status), nil
}

// Back re-opens the previous step. Data is kept; only the predecessor's
// approval is withdrawn.
func (s *Session) Back(_ context.Context) (domain.StepOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const op = "workflow.back"
	from := s.state
	switch {
	case s.busy:
		return domain.StepOutcome{}, s.reject(from, domain.WrapError(domain.ErrStepInFlight, op, fmt.Errorf("%s is still computing", from)))
	case from.IsTerminal():
		return domain.StepOutcome{}, s.reject(from, domain.WrapError(domain.ErrStepClosed, op, fmt.Errorf("completed sessions can only be reset or exported")))
	case from.IsInitial():
		return domain.StepOutcome{}, s.reject(from, domain.WrapError(domain.ErrPreconditionViolation, op, fmt.Errorf("%s is the first step", from)))
	}

	prev, _ := from.Previous()
	s.approved[prev] = false
	s.state = prev
	s.touch()
	s.deps.Logger.Info("step_moved_back", "session_id", s.id, "from", from, "to", prev)
	s.deps.Metrics.RecordTransition(from, prev, domain.AdvanceStatusMovedBack)
	return s.outcomeLocked(domain.AdvanceStatusMovedBack), nil
}

// Reset empties the session and abandons any running step computation.
func (s *Session) Reset(_ context.Context) domain.StepOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.busy = false
	s.state = domain.StepOrgVerification
	s.record = domain.WorkflowRecord{}
	s.approved = make(map[domain.StepState]bool)
	s.touch()
	s.deps.Logger.Info("session_reset", "session_id", s.id, "from", from)
	s.deps.Metrics.RecordTransition(from, s.state, domain.AdvanceStatusReset)
	return s.outcomeLocked(domain.AdvanceStatusReset)
}

// Abandon stops any running step computation of a session that is being
// discarded. Its late result is dropped like after Reset.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.busy = false
	s.deps.Logger.Debug("session_abandoned", "session_id", s.id, "step", s.state)
}

// Snapshot returns a copy of the session that shares no mutable state.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	approvals := make(map[domain.StepState]bool, len(s.approved))
	for step, ok := range s.approved {
		approvals[step] = ok
	}
	return domain.SessionSnapshot{
		ID:            s.id,
		State:         s.state,
		Record:        s.record.Clone(),
		Approvals:     approvals,
		ApprovalsHeld: s.approvalsHeldLocked(),
		Busy:          s.busy,
		Config:        s.cfg,
		CreatedAt:     s.createdAt,
		UpdatedAt:     s.updatedAt,
	}
}

// Summary is Snapshot plus, in debug mode, the gateway probe state.
func (s *Session) Summary(ctx context.Context) domain.SessionSnapshot {
	snap := s.Snapshot()
	if s.cfg.Debug && s.deps.Prober != nil {
		probe := s.deps.Prober.Status(ctx)
		snap.Probe = &probe
	}
	return snap
}

// Draft returns what the document assembler needs.
func (s *Session) Draft() domain.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Draft{SessionID: s.id, State: s.state, Record: s.record.Clone()}
}

func (s *Session) ApprovalsHeld() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.approvalsHeldLocked()
}

func (s *Session) approvalsHeldLocked() int {
	n := 0
	for _, ok := range s.approved {
		if ok {
			n++
		}
	}
	return n
}

func (s *Session) outcomeLocked(status domain.AdvanceStatus) domain.StepOutcome {
	return domain.StepOutcome{
		SessionID:     s.id,
		State:         s.state,
		Status:        status,
		ApprovalsHeld: s.approvalsHeldLocked(),
		Record:        s.record.Clone(),
	}
}

func (s *Session) touch() {
	s.updatedAt = s.deps.Now().UTC()
}

func (s *Session) reject(step domain.StepState, err error) error {
	s.deps.Metrics.RecordRejection(step, rejectionKind(err))
	s.deps.Logger.Debug("step_rejected", "session_id", s.id, "step", step, "error", err)
	return err
}

func rejectionKind(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrStepClosed):
		return "step_closed"
	case domain.IsKind(err, domain.ErrStepMismatch):
		return "step_mismatch"
	case domain.IsKind(err, domain.ErrStepInFlight):
		return "step_in_flight"
	case domain.IsKind(err, domain.ErrPreconditionViolation):
		return "precondition"
	case domain.IsKind(err, domain.ErrSessionReset):
		return "reset"
	default:
		return "internal"
	}
}

// compute produces a record mutation from a snapshot of the record.
type compute func(ctx context.Context, record domain.WorkflowRecord) (func(*domain.WorkflowRecord), error)

// submit runs a step computation for step and merges its result as the step's
// new proposal. The step's approval is withdrawn until Advance grants it again.
func (s *Session) submit(ctx context.Context, step domain.StepState, op string, validate func() error, run compute) (domain.StepOutcome, error) {
	s.mu.Lock()
	current := s.state
	var err error
	switch {
	case current.IsTerminal():
		err = domain.WrapError(domain.ErrStepClosed, op, fmt.Errorf("completed sessions can only be reset or exported"))
	case current != step:
		err = domain.WrapError(domain.ErrStepMismatch, op, fmt.Errorf("session is at %s, input is for %s", current, step))
	case s.busy:
		err = domain.WrapError(domain.ErrStepInFlight, op, fmt.Errorf("%s is still computing", step))
	default:
		err = validate()
	}
	if err != nil {
		s.mu.Unlock()
		return domain.StepOutcome{}, s.reject(current, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	generation := s.generation
	snapshot := s.record.Clone()
	s.busy = true
	s.cancel = cancel
	s.mu.Unlock()

	apply, runErr := run(runCtx, snapshot)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return domain.StepOutcome{}, s.reject(step, domain.WrapError(domain.ErrSessionReset, op, fmt.Errorf("result of %s discarded", step)))
	}
	s.busy = false
	s.cancel = nil
	if runErr != nil {
		return domain.StepOutcome{}, s.reject(step, runErr)
	}

	apply(&s.record)
	s.approved[step] = false
	s.touch()
	s.deps.Logger.Info("step_proposed", "session_id", s.id, "step", step)
	return s.outcomeLocked(domain.AdvanceStatusProposed), nil
}
