package usecase

import (
	"github.com/google/uuid"

	"github.com/kirillkom/grantflow/internal/core/domain"
)

// WorkflowService starts sessions that share one set of dependencies. The
// configuration snapshot is taken once and copied into every session.
type WorkflowService struct {
	deps Dependencies
	cfg  domain.SessionConfig
}

func NewWorkflowService(deps Dependencies, cfg domain.SessionConfig) *WorkflowService {
	return &WorkflowService{deps: deps.withDefaults(), cfg: cfg}
}

func (s *WorkflowService) Start() *Session {
	return NewSession(uuid.NewString(), s.cfg, s.deps)
}
