package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akivoy/orion/internal/conversation"
	"github.com/akivoy/orion/internal/models"
	"github.com/akivoy/orion/internal/observability"
)

// Provider is the reasoning model boundary. Complete sends the transcript
// with the tool declarations and returns the decoded response.
type Provider interface {
	Complete(ctx context.Context, messages []models.Message, tools []Definition) (models.ModelOutput, error)
}

// ErrMaxIterations is returned when a turn exceeds the round-trip budget
// without the model producing a final answer.
var ErrMaxIterations = errors.New("agent: max model iterations reached")

const defaultMaxIterations = 10

// Agent drives one conversation turn: append the user message, call the
// model, run any requested tools, resubmit, and finalize once the model
// stops asking for tools.
type Agent struct {
	provider      Provider
	store         conversation.Store
	executor      *Executor
	registry      *Registry
	log           *observability.Logger
	metrics       *observability.Metrics
	maxIterations int
}

// NewAgent wires a reasoning loop. maxIterations <= 0 selects the default.
// Metrics may be nil in tests.
func NewAgent(provider Provider, store conversation.Store, registry *Registry, log *observability.Logger, metrics *observability.Metrics, maxIterations int) *Agent {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	return &Agent{
		provider:      provider,
		store:         store,
		executor:      NewExecutor(registry, log, metrics),
		registry:      registry,
		log:           log,
		metrics:       metrics,
		maxIterations: maxIterations,
	}
}

// Process runs one full turn for userID and blocks until the final answer
// is available. whatsAppID is the raw sender id the tools address their
// notices to; the console passes the session id for both. A model failure
// propagates unchanged so the caller can reset the session; tool failures
// never surface here.
func (a *Agent) Process(ctx context.Context, userID, whatsAppID, text string) (string, error) {
	start := time.Now()
	answer, err := a.run(ctx, userID, whatsAppID, text)
	if a.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		a.metrics.TurnsTotal.WithLabelValues(outcome).Inc()
		a.metrics.TurnDuration.Observe(time.Since(start).Seconds())
	}
	return answer, err
}

// Result is the outcome of an asynchronous turn.
type Result struct {
	Answer string
	Err    error
}

// ProcessAsync runs the identical turn on its own goroutine and delivers
// the outcome on the returned channel. The channel is buffered, so the
// result never blocks even if the caller walks away.
func (a *Agent) ProcessAsync(ctx context.Context, userID, whatsAppID, text string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		answer, err := a.Process(ctx, userID, whatsAppID, text)
		ch <- Result{Answer: answer, Err: err}
	}()
	return ch
}

func (a *Agent) run(ctx context.Context, userID, whatsAppID, text string) (string, error) {
	if !a.store.Has(userID) {
		return "", conversation.ErrSessionNotFound
	}
	if err := a.store.Append(userID, models.RoleUser, text); err != nil {
		return "", err
	}

	defs := a.registry.Definitions()

	for iteration := 1; ; iteration++ {
		if iteration > a.maxIterations {
			return "", fmt.Errorf("%w after %d round trips", ErrMaxIterations, a.maxIterations)
		}

		messages, err := a.store.Messages(userID)
		if err != nil {
			return "", err
		}

		if a.metrics != nil {
			a.metrics.ModelRoundTrips.Inc()
		}
		output, err := a.provider.Complete(ctx, messages, defs)
		if err != nil {
			return "", fmt.Errorf("model request: %w", err)
		}
		// SetModelOutput also appends every output item to the transcript
		// as an ephemeral entry, so the resubmission sees the whole turn,
		// interleaved text included.
		if err := a.store.SetModelOutput(userID, output); err != nil {
			return "", err
		}

		calls := output.Invocations()
		if len(calls) == 0 {
			break
		}
		a.log.Debug(ctx, "model requested tools", "count", len(calls), "iteration", iteration)

		transcript, err := a.store.Messages(userID)
		if err != nil {
			return "", err
		}
		results := a.executor.RunBatch(ctx, userID, whatsAppID, calls, transcript)
		for _, result := range results {
			if err := a.store.AppendToolResult(userID, result); err != nil {
				return "", err
			}
		}
	}

	return a.finalize(userID)
}

// finalize purges the turn's tool plumbing, extracts the answer and records
// the assistant turn. The sentinel answer is recorded too; the transcript
// must match what the model was shown.
func (a *Agent) finalize(userID string) (string, error) {
	if err := a.store.PurgeEphemeral(userID); err != nil {
		return "", err
	}
	answer, err := a.store.FinalAnswer(userID)
	if err != nil {
		return "", err
	}
	if err := a.store.Append(userID, models.RoleAssistant, answer); err != nil {
		return "", err
	}
	return answer, nil
}
