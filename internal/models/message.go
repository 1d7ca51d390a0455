// Package models defines the conversation data model shared by the
// conversation store, the reasoning loop, and the model providers.
package models

import (
	"errors"

	"github.com/google/uuid"
)

// Role identifies the author or kind of a conversation entry. The set is
// closed: entries with any other role are rejected on insert.
type Role string

const (
	RoleSystem         Role = "system"
	RoleDeveloper      Role = "developer"
	RoleUser           Role = "user"
	RoleAssistant      Role = "assistant"
	RoleFunctionCall   Role = "function_call"
	RoleCustomToolCall Role = "custom_tool_call"
	RoleFunctionOutput Role = "function_call_output"
)

// ErrInvalidRole is returned when an entry with an unknown role is appended.
var ErrInvalidRole = errors.New("models: invalid role")

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleDeveloper, RoleUser, RoleAssistant,
		RoleFunctionCall, RoleCustomToolCall, RoleFunctionOutput:
		return true
	}
	return false
}

// IsCall reports whether r represents a tool invocation request emitted by
// the model rather than a plain turn.
func (r Role) IsCall() bool {
	return r == RoleFunctionCall || r == RoleCustomToolCall
}

// Message is a single transcript entry. One struct covers plain turns and
// tool-call plumbing; which fields are set depends on Role:
//
//	system/developer/user/assistant: Content
//	function_call:                   Name, CallID, Arguments
//	custom_tool_call:                Name, CallID, Input
//	function_call_output:            CallID, Output
//
// ID is assigned at construction and is the identity used when ephemeral
// entries are purged after a completed turn.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content,omitempty"`
	Name      string `json:"name,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Input     string `json:"input,omitempty"`
	Output    string `json:"output,omitempty"`
}

// NewTurn builds a plain conversational entry.
func NewTurn(role Role, content string) Message {
	return Message{ID: uuid.NewString(), Role: role, Content: content}
}

// NewFunctionCall records a structured tool invocation emitted by the model.
func NewFunctionCall(name, callID, arguments string) Message {
	return Message{ID: uuid.NewString(), Role: RoleFunctionCall, Name: name, CallID: callID, Arguments: arguments}
}

// NewCustomToolCall records a freeform tool invocation emitted by the model.
func NewCustomToolCall(name, callID, input string) Message {
	return Message{ID: uuid.NewString(), Role: RoleCustomToolCall, Name: name, CallID: callID, Input: input}
}

// NewFunctionOutput records the result produced for a prior tool call.
func NewFunctionOutput(callID, output string) Message {
	return Message{ID: uuid.NewString(), Role: RoleFunctionOutput, CallID: callID, Output: output}
}
