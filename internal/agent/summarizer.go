package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/akivoy/orion/internal/models"
)

// SummaryFormat selects the rendering of a conversation summary.
type SummaryFormat string

const (
	// SummaryHTML renders the summary as simple HTML for the ERP lead
	// description field.
	SummaryHTML SummaryFormat = "html"
	// SummaryPlain renders the summary as plain text for email notices.
	SummaryPlain SummaryFormat = "plain"
)

// Summarizer produces one-shot conversation summaries over the same model
// boundary the reasoning loop uses, without any tools.
type Summarizer struct {
	provider Provider
}

// NewSummarizer creates a summarizer over the given provider.
func NewSummarizer(provider Provider) *Summarizer {
	return &Summarizer{provider: provider}
}

// Summarize condenses a transcript into a short summary of the customer's
// interest. Only user and assistant turns feed the summary; preambles and
// tool plumbing are skipped.
func (s *Summarizer) Summarize(ctx context.Context, transcript []models.Message, format SummaryFormat) (string, error) {
	var sb strings.Builder
	for _, msg := range transcript {
		switch msg.Role {
		case models.RoleUser:
			sb.WriteString("Cliente: ")
			sb.WriteString(msg.Content)
			sb.WriteByte('\n')
		case models.RoleAssistant:
			sb.WriteString("Asistente: ")
			sb.WriteString(msg.Content)
			sb.WriteByte('\n')
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("summarize: transcript has no conversational turns")
	}

	instruction := "Resume la siguiente conversación entre un cliente y el asistente. " +
		"Indica qué busca el cliente, los productos mencionados y cualquier dato de contacto. " +
		"Responde únicamente con el resumen, en español."
	if format == SummaryHTML {
		instruction += " Usa HTML simple (<p>, <ul>, <li>) sin estilos."
	}

	messages := []models.Message{
		models.NewTurn(models.RoleSystem, instruction),
		models.NewTurn(models.RoleUser, sb.String()),
	}

	output, err := s.provider.Complete(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	text, ok := output.AnswerText()
	if !ok || text == "" {
		return "", fmt.Errorf("summarize: model returned no text")
	}
	return text, nil
}
