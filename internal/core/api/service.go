// Package api implements the condfields.v1.FormStates gRPC service.
package api

import (
	"fmt"

	"github.com/solatis/condfields/internal/rules"
)

// FormStatesService implements FormStatesServer.
// Thin orchestration layer delegating to the rules engine and admin.
// Every request gets its own resolution Session.
type FormStatesService struct {
	engine *rules.Engine
	admin  *rules.Admin
}

var _ FormStatesServer = (*FormStatesService)(nil)

// NewFormStatesService creates service instance with dependencies.
func NewFormStatesService(engine *rules.Engine, admin *rules.Admin) (*FormStatesService, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if admin == nil {
		return nil, fmt.Errorf("admin cannot be nil")
	}
	return &FormStatesService{engine: engine, admin: admin}, nil
}
