// Package conversation holds per-user transcripts: the exact message
// sequence sent to the reasoning model, including the ephemeral tool-call
// plumbing that is purged once a turn completes.
package conversation

import (
	"errors"

	"github.com/akivoy/orion/internal/models"
)

// NoAnswer is the sentinel returned when the latest model response carries
// no message text. Callers deliver it verbatim rather than inventing a reply.
const NoAnswer = "No Answer"

// ErrSessionNotFound is returned for operations on a user without a session.
var ErrSessionNotFound = errors.New("conversation: session not found")

// Store is the per-user transcript registry. Implementations must be safe
// for concurrent use; per-user write ordering is the admission gate's job.
type Store interface {
	// Has reports whether userID has a live session.
	Has(userID string) bool

	// Init creates a session whose transcript starts with the developer
	// preamble. Re-initializing an existing session resets it.
	Init(userID, preamble string)

	// Append adds a plain turn. The role must belong to the closed role
	// set and must not be a call role. An absent session is created on
	// the fly, without a preamble.
	Append(userID string, role models.Role, content string) error

	// AppendCall records a tool invocation emitted by the model. The
	// entry joins both the transcript and the ephemeral set.
	AppendCall(userID string, call models.Invocation) error

	// AppendToolResult records the outcome of a prior call. The entry
	// joins both the transcript and the ephemeral set.
	AppendToolResult(userID string, result models.ToolResult) error

	// SetModelOutput stores the latest decoded model response and appends
	// each of its items to the transcript as an ephemeral entry.
	SetModelOutput(userID string, output models.ModelOutput) error

	// FinalAnswer extracts the answer text from the latest model
	// response, or NoAnswer when it has no message item.
	FinalAnswer(userID string) (string, error)

	// PurgeEphemeral removes every ephemeral entry from the transcript.
	// Removal is by entry identity; a surviving turn with identical
	// content is never touched.
	PurgeEphemeral(userID string) error

	// Messages returns a copy of the transcript.
	Messages(userID string) ([]models.Message, error)

	// Delete discards the session entirely. Deleting an absent session
	// is a no-op.
	Delete(userID string)

	// Len reports the number of live sessions.
	Len() int
}
