package handlers

import (
	"context"
	"encoding/json"

	"github.com/relayworks/relay/pkg/schema"
)

// Handler executes one step type within a workflow walk.
type Handler interface {
	Type() schema.StepType
	Execute(ctx context.Context, input Input) (*Output, error)
	Validate(config map[string]any) error
}

// HandlerRegistry manages the lifecycle and lookup of available step handlers.
type HandlerRegistry interface {
	Register(handler Handler) error
	Get(stepType schema.StepType) (Handler, error)
	List() []HandlerInfo
}

// Input is the data provided to a handler at execution time. Config is the
// step's interpolated configuration; Context carries the merged execution
// scope plus execution and step identifiers.
type Input struct {
	Config  map[string]any `json:"config"`
	Context map[string]any `json:"context,omitempty"`
}

// Output is the result of a handler execution.
type Output struct {
	Data json.RawMessage `json:"data,omitempty"`
}

// HandlerInfo is a summary of a registered handler for listing.
type HandlerInfo struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}
