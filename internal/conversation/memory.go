package conversation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/akivoy/orion/internal/models"
)

// ErrUnknownCallID is returned when a tool result references a call ID the
// transcript has never seen.
var ErrUnknownCallID = errors.New("conversation: tool result references unknown call id")

type session struct {
	messages []models.Message
	// ephemeral holds the IDs of call and output entries appended during
	// the current turn. PurgeEphemeral removes exactly these entries.
	ephemeral map[string]struct{}
	// callIDs tracks every call ID the model has emitted for this
	// session, so orphan tool results are rejected.
	callIDs map[string]struct{}
	output  models.ModelOutput
	hasOut  bool
}

// MemoryStore is the in-process Store implementation. A single mutex guards
// the session map and the sessions themselves; transcript operations are
// cheap appends, so finer locking buys nothing.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*session)}
}

func (s *MemoryStore) Has(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[userID]
	return ok
}

func (s *MemoryStore) Init(userID, preamble string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := newSession()
	sess.messages = append(sess.messages, models.NewTurn(models.RoleDeveloper, preamble))
	s.sessions[userID] = sess
}

func newSession() *session {
	return &session{
		ephemeral: make(map[string]struct{}),
		callIDs:   make(map[string]struct{}),
	}
}

func (s *MemoryStore) Append(userID string, role models.Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidRole, role)
	}
	if role.IsCall() || role == models.RoleFunctionOutput {
		return fmt.Errorf("%w: %q is not a plain turn", models.ErrInvalidRole, role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		// Appending to an absent user opens a fresh session. The turn
		// then runs without a preamble rather than being dropped.
		sess = newSession()
		s.sessions[userID] = sess
	}
	sess.messages = append(sess.messages, models.NewTurn(role, content))
	return nil
}

func (s *MemoryStore) AppendCall(userID string, call models.Invocation) error {
	var msg models.Message
	switch call.Kind {
	case models.CallFunction:
		msg = models.NewFunctionCall(call.Name, call.CallID, call.Payload)
	case models.CallCustom:
		msg = models.NewCustomToolCall(call.Name, call.CallID, call.Payload)
	default:
		return fmt.Errorf("conversation: unknown call kind %q", call.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return ErrSessionNotFound
	}
	sess.messages = append(sess.messages, msg)
	sess.ephemeral[msg.ID] = struct{}{}
	sess.callIDs[call.CallID] = struct{}{}
	return nil
}

func (s *MemoryStore) AppendToolResult(userID string, result models.ToolResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return ErrSessionNotFound
	}
	if _, seen := sess.callIDs[result.CallID]; !seen {
		return fmt.Errorf("%w: %q", ErrUnknownCallID, result.CallID)
	}
	msg := models.NewFunctionOutput(result.CallID, result.Output)
	sess.messages = append(sess.messages, msg)
	sess.ephemeral[msg.ID] = struct{}{}
	return nil
}

func (s *MemoryStore) SetModelOutput(userID string, output models.ModelOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return ErrSessionNotFound
	}
	sess.output = output
	sess.hasOut = true

	// Every output item joins the transcript as an ephemeral entry. Text
	// the model emits alongside tool calls is resubmitted with them and
	// purged with them once the turn completes.
	for _, item := range output.Items {
		var msg models.Message
		switch it := item.(type) {
		case models.ItemMessage:
			msg = models.NewTurn(models.RoleAssistant, it.Text)
		case models.ItemFunctionCall:
			msg = models.NewFunctionCall(it.Name, it.CallID, it.Arguments)
			sess.callIDs[it.CallID] = struct{}{}
		case models.ItemCustomToolCall:
			msg = models.NewCustomToolCall(it.Name, it.CallID, it.Input)
			sess.callIDs[it.CallID] = struct{}{}
		default:
			continue
		}
		sess.messages = append(sess.messages, msg)
		sess.ephemeral[msg.ID] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) FinalAnswer(userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return "", ErrSessionNotFound
	}
	if !sess.hasOut {
		return NoAnswer, nil
	}
	if text, ok := sess.output.AnswerText(); ok && text != "" {
		return text, nil
	}
	return NoAnswer, nil
}

func (s *MemoryStore) PurgeEphemeral(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return ErrSessionNotFound
	}
	if len(sess.ephemeral) == 0 {
		return nil
	}
	kept := sess.messages[:0]
	for _, msg := range sess.messages {
		if _, drop := sess.ephemeral[msg.ID]; !drop {
			kept = append(kept, msg)
		}
	}
	sess.messages = kept
	sess.ephemeral = make(map[string]struct{})
	return nil
}

func (s *MemoryStore) Messages(userID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := make([]models.Message, len(sess.messages))
	copy(out, sess.messages)
	return out, nil
}

func (s *MemoryStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
