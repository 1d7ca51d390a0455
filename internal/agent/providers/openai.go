// Package providers implements the model boundary over the OpenAI API.
package providers

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/akivoy/orion/internal/agent"
	"github.com/akivoy/orion/internal/config"
	"github.com/akivoy/orion/internal/models"
)

// OpenAI talks to the chat completions API. It translates the domain
// transcript to wire messages on the way out and decodes the response into
// the closed output-item set on the way in; nothing outside this package
// sees wire shapes.
type OpenAI struct {
	client          *openai.Client
	model           string
	reasoningEffort string
}

// New creates a provider from configuration.
func New(cfg config.OpenAIConfig) *OpenAI {
	return &OpenAI{
		client:          openai.NewClient(cfg.APIKey),
		model:           cfg.Model,
		reasoningEffort: cfg.ReasoningEffort,
	}
}

// Complete implements agent.Provider.
func (p *OpenAI) Complete(ctx context.Context, messages []models.Message, tools []agent.Definition) (models.ModelOutput, error) {
	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: toWireMessages(messages),
		Tools:    toWireTools(tools),
	}
	if p.reasoningEffort != "" {
		req.ReasoningEffort = p.reasoningEffort
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return models.ModelOutput{}, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.ModelOutput{}, fmt.Errorf("openai: response has no choices")
	}
	return decode(resp.Choices[0].Message, tools), nil
}

// toWireMessages maps transcript entries to chat messages. The developer
// role rides as a system message; the API accepts only one instruction
// role and treats them equivalently for this model family. Consecutive
// call entries collapse into a single assistant tool-call message, folded
// into the assistant text that directly precedes them when there is one,
// so a resubmitted transcript reproduces the message the model emitted.
// The API rejects an assistant tool-call message whose tool replies do not
// follow it, which is exactly what one-message-per-call would produce for
// a multi-call batch.
func toWireMessages(messages []models.Message) []openai.ChatCompletionMessage {
	wire := make([]openai.ChatCompletionMessage, 0, len(messages))
	for i := 0; i < len(messages); i++ {
		msg := messages[i]
		switch msg.Role {
		case models.RoleSystem, models.RoleDeveloper:
			wire = append(wire, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: msg.Content,
			})
		case models.RoleUser:
			wire = append(wire, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		case models.RoleAssistant:
			wire = append(wire, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			})
		case models.RoleFunctionCall, models.RoleCustomToolCall:
			var calls []openai.ToolCall
			for ; i < len(messages) && messages[i].Role.IsCall(); i++ {
				m := messages[i]
				payload := m.Arguments
				if m.Role == models.RoleCustomToolCall {
					payload = m.Input
				}
				calls = append(calls, openai.ToolCall{
					ID:   m.CallID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      m.Name,
						Arguments: payload,
					},
				})
			}
			i--
			// Assistant text directly before the calls came out of the
			// same model message; reattach the calls to it.
			if n := len(wire); n > 0 && wire[n-1].Role == openai.ChatMessageRoleAssistant && wire[n-1].ToolCalls == nil {
				wire[n-1].ToolCalls = calls
				continue
			}
			wire = append(wire, openai.ChatCompletionMessage{
				Role:      openai.ChatMessageRoleAssistant,
				ToolCalls: calls,
			})
		case models.RoleFunctionOutput:
			wire = append(wire, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Output,
				ToolCallID: msg.CallID,
			})
		}
	}
	return wire
}

func toWireTools(tools []agent.Definition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	wire := make([]openai.Tool, 0, len(tools))
	for _, def := range tools {
		fn := &openai.FunctionDefinition{
			Name:        def.Name,
			Description: def.Description,
		}
		if def.Parameters != nil {
			fn.Parameters = def.Parameters
		}
		wire = append(wire, openai.Tool{Type: openai.ToolTypeFunction, Function: fn})
	}
	return wire
}

// decode turns the wire response into output items. Tool calls are decoded
// against the declared definitions: a name registered as freeform comes
// back as a custom call with its payload intact.
func decode(msg openai.ChatCompletionMessage, tools []agent.Definition) models.ModelOutput {
	custom := make(map[string]bool, len(tools))
	for _, def := range tools {
		if def.Kind == models.CallCustom {
			custom[def.Name] = true
		}
	}

	var out models.ModelOutput
	if msg.Content != "" {
		out.Items = append(out.Items, models.ItemMessage{Text: msg.Content})
	}
	for _, tc := range msg.ToolCalls {
		if custom[tc.Function.Name] {
			out.Items = append(out.Items, models.ItemCustomToolCall{
				Name:   tc.Function.Name,
				CallID: tc.ID,
				Input:  tc.Function.Arguments,
			})
			continue
		}
		out.Items = append(out.Items, models.ItemFunctionCall{
			Name:      tc.Function.Name,
			CallID:    tc.ID,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}
