// Package agent implements the reasoning loop: it shuttles the transcript to
// the model, dispatches the tool calls the model emits, and extracts the
// final answer.
package agent

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/akivoy/orion/internal/models"
)

// Definition describes a tool to the model and to the executor.
type Definition struct {
	Name        string
	Description string
	// Parameters is the JSON schema of the arguments. Nil for freeform
	// tools, whose payload is passed through verbatim.
	Parameters json.RawMessage
	// Kind selects the invocation shape the model uses for this tool.
	Kind models.CallKind
	// NeedsTranscript asks the executor to snapshot the conversation
	// into Call.Transcript. Only the lead-creation tool wants this.
	NeedsTranscript bool
}

// Call is the per-invocation context handed to a tool.
type Call struct {
	// UserID is the spaced phone number the ERP stores; it keys the
	// session and every partner lookup.
	UserID string
	// WhatsAppID is the raw sender id from the webhook. Outbound notices
	// and image sends are addressed to it, never to UserID.
	WhatsAppID string
	// Args holds the JSON arguments of a structured call.
	Args json.RawMessage
	// RawInput holds the verbatim payload of a freeform call.
	RawInput string
	// Transcript is a snapshot of the conversation, populated only when
	// the tool's definition asks for it.
	Transcript []models.Message
}

// Tool is an operation the model may invoke. Invoke returns the string fed
// back to the model; an error is coerced to a fixed user-safe message by the
// executor and never propagates further.
type Tool interface {
	Definition() Definition
	Invoke(ctx context.Context, call Call) (string, error)
}

// Registry is a fixed name-to-tool map assembled at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering the same name twice replaces the
// earlier tool.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Definition().Name] = tool
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Definitions lists every registered tool, sorted by name so the
// declarations sent to the model are stable across requests.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
