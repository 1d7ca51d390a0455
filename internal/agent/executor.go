package agent

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/akivoy/orion/internal/models"
	"github.com/akivoy/orion/internal/observability"
)

// ToolErrorMessage is what the model sees when a tool fails. The real error
// is logged; the model only ever gets this fixed string, so internals never
// leak into the conversation.
const ToolErrorMessage = "Ha ocurrido un error inesperado"

const defaultMaxConcurrentTools = 5

// Executor runs a batch of tool invocations concurrently and returns one
// result per call, in the order the model emitted them.
type Executor struct {
	registry      *Registry
	log           *observability.Logger
	metrics       *observability.Metrics
	maxConcurrent int
}

// NewExecutor creates an executor over the given registry. Metrics may be
// nil in tests.
func NewExecutor(registry *Registry, log *observability.Logger, metrics *observability.Metrics) *Executor {
	return &Executor{
		registry:      registry,
		log:           log,
		metrics:       metrics,
		maxConcurrent: defaultMaxConcurrentTools,
	}
}

// RunBatch executes every invocation and returns exactly len(calls)
// results. A failed or unknown tool yields ToolErrorMessage; errors never
// escape this method. The transcript snapshot is shared by the tools that
// declared they need it.
func (e *Executor) RunBatch(ctx context.Context, userID, whatsAppID string, calls []models.Invocation, transcript []models.Message) []models.ToolResult {
	results := make([]models.ToolResult, len(calls))
	if len(calls) == 0 {
		return results
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxConcurrent)

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, call models.Invocation) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = e.runOne(ctx, userID, whatsAppID, call, transcript)
		}(i, call)
	}
	wg.Wait()
	return results
}

func (e *Executor) runOne(ctx context.Context, userID, whatsAppID string, call models.Invocation, transcript []models.Message) models.ToolResult {
	start := time.Now()

	output, err := e.invoke(ctx, userID, whatsAppID, call, transcript)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		output = ToolErrorMessage
		e.log.Error(ctx, "tool execution failed",
			"tool", call.Name, "call_id", call.CallID, "error", err)
	}

	if e.metrics != nil {
		e.metrics.ToolExecutionsTotal.WithLabelValues(call.Name, outcome).Inc()
		e.metrics.ToolDuration.WithLabelValues(call.Name).Observe(time.Since(start).Seconds())
	}
	return models.ToolResult{CallID: call.CallID, Output: output}
}

// invoke is the single dispatch path for both invocation shapes; the kind
// only decides which payload field the tool receives.
func (e *Executor) invoke(ctx context.Context, userID, whatsAppID string, call models.Invocation, transcript []models.Message) (string, error) {
	tool, ok := e.registry.Get(call.Name)
	if !ok {
		return "", &UnknownToolError{Name: call.Name}
	}

	tc := Call{UserID: userID, WhatsAppID: whatsAppID}
	switch call.Kind {
	case models.CallCustom:
		tc.RawInput = call.Payload
	default:
		tc.Args = json.RawMessage(call.Payload)
	}
	if tool.Definition().NeedsTranscript {
		tc.Transcript = transcript
	}
	return tool.Invoke(ctx, tc)
}

// UnknownToolError reports an invocation of a name no tool is registered
// under.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return "agent: unknown tool " + e.Name
}
