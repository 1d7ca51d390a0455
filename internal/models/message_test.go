package models

import "testing"

func TestRole_Valid(t *testing.T) {
	valid := []Role{
		RoleSystem, RoleDeveloper, RoleUser, RoleAssistant,
		RoleFunctionCall, RoleCustomToolCall, RoleFunctionOutput,
	}
	for _, r := range valid {
		if !r.Valid() {
			t.Errorf("role %q should be valid", r)
		}
	}

	invalid := []Role{"", "tool", "model", "SYSTEM", "User"}
	for _, r := range invalid {
		if r.Valid() {
			t.Errorf("role %q should be invalid", r)
		}
	}
}

func TestNewTurn_AssignsUniqueIDs(t *testing.T) {
	a := NewTurn(RoleUser, "hola")
	b := NewTurn(RoleUser, "hola")

	if a.ID == "" || b.ID == "" {
		t.Fatal("expected non-empty IDs")
	}
	if a.ID == b.ID {
		t.Fatal("two entries with identical content must get distinct IDs")
	}
}

func TestModelOutput_Invocations(t *testing.T) {
	out := ModelOutput{Items: []OutputItem{
		ItemFunctionCall{Name: "get_partner", CallID: "c1", Arguments: `{"phone":"+598"}`},
		ItemMessage{Text: "un momento"},
		ItemCustomToolCall{Name: "execute_query", CallID: "c2", Input: "SELECT 1"},
	}}

	calls := out.Invocations()
	if len(calls) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(calls))
	}
	if calls[0].Kind != CallFunction || calls[0].CallID != "c1" || calls[0].Payload != `{"phone":"+598"}` {
		t.Errorf("unexpected first invocation: %+v", calls[0])
	}
	if calls[1].Kind != CallCustom || calls[1].Name != "execute_query" || calls[1].Payload != "SELECT 1" {
		t.Errorf("unexpected second invocation: %+v", calls[1])
	}
}

func TestModelOutput_AnswerText(t *testing.T) {
	out := ModelOutput{Items: []OutputItem{
		ItemFunctionCall{Name: "x", CallID: "c1"},
		ItemMessage{Text: "listo"},
		ItemMessage{Text: "segundo"},
	}}
	text, ok := out.AnswerText()
	if !ok || text != "listo" {
		t.Fatalf("expected first message text %q, got %q ok=%v", "listo", text, ok)
	}

	empty := ModelOutput{Items: []OutputItem{ItemFunctionCall{Name: "x"}}}
	if _, ok := empty.AnswerText(); ok {
		t.Fatal("expected no answer text when response has no message item")
	}
}
