package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/akivoy/orion/internal/models"
	"github.com/akivoy/orion/internal/observability"
)

const (
	odooOutageNotice = "Ha ocurrido un error conectándose al servidor Odoo. Vuelva más tarde"
	chatResetNotice  = "Ha ocurrido un error y el chat fue reiniciado. Por favor, comencemos de nuevo"

	unknownUserPreamble = "El usuario no existe en Odoo. Solicita amablemente su nombre completo y su correo electrónico. " +
		"Una vez tengas ambos datos (name y email), procede a crear el registro usando las herramientas disponibles " +
		"y confirma al usuario que quedó registrado."
)

// webhookPayload is the slice of Meta's notification envelope this service
// cares about.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []incomingMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type incomingMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive struct {
		Type        string `json:"type"`
		ButtonReply struct {
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply struct {
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

// text extracts the human-readable content of a message. Unsupported media
// types yield an empty string.
func (m *incomingMessage) text() string {
	switch m.Type {
	case "text":
		return strings.TrimSpace(m.Text.Body)
	case "interactive":
		switch m.Interactive.Type {
		case "button_reply":
			return m.Interactive.ButtonReply.Title
		case "list_reply":
			return m.Interactive.ListReply.Title
		}
	}
	return ""
}

// firstMessage digs the first message out of the envelope.
func (p *webhookPayload) firstMessage() (incomingMessage, bool) {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return incomingMessage{}, false
	}
	messages := p.Entry[0].Changes[0].Value.Messages
	if len(messages) == 0 {
		return incomingMessage{}, false
	}
	return messages[0], true
}

// handleWebhook processes one incoming WhatsApp message end to end. Meta
// always gets a 200; delivery errors are handled on this side, never by
// making Meta retry.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.log.Error(ctx, "undecodable webhook payload", "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "error"})
		return
	}

	message, ok := payload.firstMessage()
	if !ok {
		// Status updates and other non-message events.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	text := message.text()
	if text == "" {
		s.log.Warn(ctx, "unsupported message type", "type", message.Type)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if message.ID != "" {
		s.deps.Background.MarkAsRead(message.ID)
	}

	userNumber := message.From
	formatted := FormatPhoneNumber(userNumber)
	ctx = observability.AddUserID(ctx, formatted)

	if !s.deps.Gate.TryEnter(formatted, userNumber) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	defer s.deps.Gate.Leave(formatted)
	defer s.deps.Gate.Touch(formatted)

	s.log.Info(ctx, "message received", "user", formatted)

	if !s.deps.Sessions.Has(formatted) {
		if !s.setupSession(ctx, formatted, userNumber) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
	}

	answer, err := s.deps.Assistant.Process(ctx, formatted, userNumber, text)
	if err != nil {
		s.log.Error(ctx, "turn failed, resetting session", "user", formatted, "error", err)
		s.deps.Sessions.Delete(formatted)
		s.deps.Gate.Forget(formatted)
		s.deps.Background.Text(userNumber, chatResetNotice)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	s.persistTurn(formatted, text, answer)
	s.deps.Background.Run("answer", func(ctx context.Context) error {
		return s.deps.WhatsApp.SendChunked(ctx, userNumber, answer)
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// setupSession handles first contact: the partner lookup decides the
// preamble the session opens with. An unreachable ERP aborts the turn with
// an apology instead of starting a blind session.
func (s *Server) setupSession(ctx context.Context, formatted, userNumber string) bool {
	partner, err := s.deps.Partners.GetPartnerByPhone(ctx, formatted)
	if err != nil {
		s.log.Error(ctx, "erp unreachable during setup", "user", formatted, "error", err)
		s.deps.Background.Text(userNumber, odooOutageNotice)
		return false
	}

	preamble := unknownUserPreamble
	name := ""
	if partner != nil {
		userData := map[string]string{}
		if n, ok := partner["name"].(string); ok {
			userData["name"] = n
			name = n
		}
		if email, ok := partner["email"].(string); ok && email != "" {
			userData["email"] = email
		}
		data, _ := json.Marshal(userData)
		preamble = "Datos del usuario: " + string(data) + ". Llámale por su nombre"
		s.log.Info(ctx, "returning customer recognized", "user", formatted, "name", name)
	} else {
		s.log.Info(ctx, "unknown customer, onboarding", "user", formatted)
	}

	s.deps.Sessions.Init(formatted, preamble)
	if s.deps.History != nil {
		displayName := name
		s.deps.Background.Run("ensure_user", func(ctx context.Context) error {
			return s.deps.History.EnsureUser(ctx, formatted, displayName)
		})
	}
	return true
}

// persistTurn records the user and assistant turns off the request path.
func (s *Server) persistTurn(formatted, text, answer string) {
	if s.deps.History == nil {
		return
	}
	s.deps.Background.Run("persist_turn", func(ctx context.Context) error {
		if err := s.deps.History.AppendMessage(ctx, formatted, string(models.RoleUser), text); err != nil {
			return err
		}
		return s.deps.History.AppendMessage(ctx, formatted, string(models.RoleAssistant), answer)
	})
}

// FormatPhoneNumber normalizes a WhatsApp sender id to the spaced form the
// ERP stores, for example "+59 812 34 56 78".
func FormatPhoneNumber(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) < 10 {
		return "+" + d
	}
	return "+" + d[:2] + " " + d[2:5] + " " + d[5:7] + " " + d[7:9] + " " + d[9:]
}
