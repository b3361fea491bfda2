package main

import (
	"github.com/hibiken/asynq"

	genealogyJob "family-registry-backend/internal/domains/genealogy/job"
	"family-registry-backend/internal/shared"
	"family-registry-backend/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	renumber    *genealogyJob.RenumberHandler
	verifyCodes *genealogyJob.VerifyCodesHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		renumber:    genealogyJob.NewRenumberHandler(c.GenealogyService),
		verifyCodes: genealogyJob.NewVerifyCodesHandler(c.GenealogyService, c.Config.Job.VerifyConcurrency),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	// Genealogy tasks
	mux.HandleFunc(shared.TypeRenumberGroup, h.renumber.ProcessGroup)
	mux.HandleFunc(shared.TypeRenumberSubtree, h.renumber.ProcessSubtree)

	// Maintenance tasks
	mux.HandleFunc(shared.TypeVerifyCodes, h.verifyCodes.ProcessTask)
}
