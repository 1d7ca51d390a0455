package models

// CallKind distinguishes the two invocation shapes a model can emit. The
// executor dispatches both through the same path; the kind only decides
// which payload field the call carries and which transcript role records it.
type CallKind string

const (
	// CallFunction is a structured call with JSON-encoded arguments.
	CallFunction CallKind = "function"
	// CallCustom is a freeform call whose payload is passed through verbatim.
	CallCustom CallKind = "custom"
)

// OutputItem is one element of a model response. The set of implementations
// is closed: ItemMessage, ItemFunctionCall and ItemCustomToolCall. Responses
// are decoded into these variants once, at the provider boundary; nothing
// downstream inspects raw wire shapes.
type OutputItem interface {
	isOutputItem()
}

// ItemMessage is assistant-visible text.
type ItemMessage struct {
	Text string
}

// ItemFunctionCall asks for a structured tool invocation.
type ItemFunctionCall struct {
	Name      string
	CallID    string
	Arguments string
}

// ItemCustomToolCall asks for a freeform tool invocation.
type ItemCustomToolCall struct {
	Name   string
	CallID string
	Input  string
}

func (ItemMessage) isOutputItem()        {}
func (ItemFunctionCall) isOutputItem()   {}
func (ItemCustomToolCall) isOutputItem() {}

// ModelOutput is the decoded form of the latest model response.
type ModelOutput struct {
	Items []OutputItem
}

// Invocation is the unified call shape handed to the tool executor.
// Payload holds JSON arguments for CallFunction and raw input for CallCustom.
type Invocation struct {
	Kind    CallKind
	Name    string
	CallID  string
	Payload string
}

// Invocations extracts every tool call from the response, in emission order.
func (o ModelOutput) Invocations() []Invocation {
	var calls []Invocation
	for _, item := range o.Items {
		switch it := item.(type) {
		case ItemFunctionCall:
			calls = append(calls, Invocation{Kind: CallFunction, Name: it.Name, CallID: it.CallID, Payload: it.Arguments})
		case ItemCustomToolCall:
			calls = append(calls, Invocation{Kind: CallCustom, Name: it.Name, CallID: it.CallID, Payload: it.Input})
		}
	}
	return calls
}

// AnswerText returns the text of the first message item, if any.
func (o ModelOutput) AnswerText() (string, bool) {
	for _, item := range o.Items {
		if msg, ok := item.(ItemMessage); ok {
			return msg.Text, true
		}
	}
	return "", false
}

// ToolResult is the outcome of one tool invocation, keyed by the call ID the
// model assigned. Output is always a user-safe string; failures are coerced
// before a result is built.
type ToolResult struct {
	CallID string
	Output string
}
