// Package server exposes the REST control plane: event ingress, execution
// control, approvals, workflow and template management, and scheduled
// triggers.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/relayworks/relay/internal/approval"
	"github.com/relayworks/relay/internal/engine"
	"github.com/relayworks/relay/internal/orchestrator"
	"github.com/relayworks/relay/internal/store"
	"github.com/relayworks/relay/internal/streaming"
	"github.com/relayworks/relay/internal/validation"
	"github.com/relayworks/relay/pkg/schema"
)

// Pipeline is the slice of the orchestrator the API needs.
// Satisfied by *orchestrator.Orchestrator.
type Pipeline interface {
	ProcessEvent(ctx context.Context, event schema.InboundEvent) (*orchestrator.TriageOutcome, error)
	StartExecution(ctx context.Context, workflowID string, payload map[string]any) (*store.Execution, error)
	Cancel(ctx context.Context, executionID, reason string) error
	ResolveApproval(ctx context.Context, approvalID, approverID string, approve bool, reason string) (bool, error)
}

// Deps holds the dependencies for the API server.
type Deps struct {
	Store     store.Store
	Pipeline  Pipeline
	Approvals *approval.Manager
	Executor  engine.Executor
	Validator validation.Validator
	Hub       streaming.EventHub
	Logger    *slog.Logger
}

// Server serves the REST API.
type Server struct {
	deps Deps
}

// New creates a Server.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{deps: deps}
}

// Handler returns the HTTP handler for all API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Event ingress.
	mux.HandleFunc("POST /api/events", s.handleIngestEvent)

	// Executions.
	mux.HandleFunc("POST /api/executions", s.handleStartExecution)
	mux.HandleFunc("GET /api/executions", s.handleListExecutions)
	mux.HandleFunc("GET /api/executions/{id}", s.handleGetExecution)
	mux.HandleFunc("POST /api/executions/{id}/cancel", s.handleCancelExecution)
	mux.HandleFunc("GET /api/executions/{id}/events", s.handleExecutionEvents)
	mux.HandleFunc("GET /api/executions/{id}/stream", s.handleExecutionStream)

	// Approvals.
	mux.HandleFunc("GET /api/approvals", s.handlePendingApprovals)
	mux.HandleFunc("GET /api/approvals/history", s.handleApprovalHistory)
	mux.HandleFunc("POST /api/approvals/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /api/approvals/{id}/reject", s.handleReject)
	mux.HandleFunc("POST /api/approvals/{id}/escalate", s.handleEscalate)

	// Workflows.
	mux.HandleFunc("POST /api/workflows", s.handleCreateWorkflow)
	mux.HandleFunc("GET /api/workflows", s.handleListWorkflows)
	mux.HandleFunc("GET /api/workflows/{id}", s.handleGetWorkflow)
	mux.HandleFunc("GET /api/workflows/{id}/diagram", s.handleWorkflowDiagram)
	mux.HandleFunc("DELETE /api/workflows/{id}", s.handleDeleteWorkflow)
	mux.HandleFunc("POST /api/workflows/{id}/enable", s.handleSetWorkflowEnabled(true))
	mux.HandleFunc("POST /api/workflows/{id}/disable", s.handleSetWorkflowEnabled(false))

	// Templates.
	mux.HandleFunc("GET /api/templates", s.handleListTemplates)
	mux.HandleFunc("POST /api/templates/{slug}/instantiate", s.handleInstantiateTemplate)

	// Scheduled triggers.
	mux.HandleFunc("POST /api/triggers", s.handleCreateTrigger)
	mux.HandleFunc("GET /api/triggers", s.handleListTriggers)
	mux.HandleFunc("PUT /api/triggers/{id}", s.handleUpdateTrigger)
	mux.HandleFunc("DELETE /api/triggers/{id}", s.handleDeleteTrigger)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
