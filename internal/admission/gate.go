// Package admission enforces single-flight processing per user: while a
// turn is in flight, further messages from the same user are turned away
// with a rotating courtesy notice instead of queueing.
package admission

import (
	"context"
	"sync"
	"time"

	"github.com/akivoy/orion/internal/observability"
)

// waitMessages are the courtesy notices sent to a user who writes while a
// previous turn is still being answered. They rotate per user so repeated
// nudges don't read like a broken record.
var waitMessages = []string{
	"Porfa dame un segundo para terminar de elaborar la respuesta 🕒",
	"Un momento, estoy procesando tu pedido, te respondo enseguida ⏳",
	"Disculpa la demora, estoy trabajando para darte la mejor respuesta 🤏",
	"Estoy revisando la información; te escribo en breve 📡",
	"Gracias por la paciencia, preparando tu respuesta ahora mismo 🔄",
}

// Notifier delivers a wait notice to a raw WhatsApp sender id. Delivery is
// fire-and-forget; the gate never blocks on it.
type Notifier interface {
	NotifyWait(whatsAppID, message string)
}

// Gate is the per-user busy registry.
type Gate struct {
	mu           sync.Mutex
	busy         map[string]bool
	waitIndex    map[string]int
	lastActivity map[string]time.Time
	notifier     Notifier
	log          *observability.Logger
	metrics      *observability.Metrics
	now          func() time.Time
}

// NewGate creates a gate. Notifier may be nil; busy users then get no
// courtesy notice but are still turned away.
func NewGate(notifier Notifier, log *observability.Logger, metrics *observability.Metrics) *Gate {
	return &Gate{
		busy:         make(map[string]bool),
		waitIndex:    make(map[string]int),
		lastActivity: make(map[string]time.Time),
		notifier:     notifier,
		log:          log,
		metrics:      metrics,
		now:          time.Now,
	}
}

// TryEnter claims the user's processing slot. It never blocks: if the slot
// is taken it schedules the next rotating wait notice for whatsAppID, the
// raw sender id deliveries are addressed to, and reports false. Activity
// is touched either way, so a chatty user is never evicted
// mid-conversation.
func (g *Gate) TryEnter(userID, whatsAppID string) bool {
	g.mu.Lock()
	g.lastActivity[userID] = g.now()
	if g.busy[userID] {
		idx := g.waitIndex[userID]
		msg := waitMessages[idx%len(waitMessages)]
		g.waitIndex[userID] = (idx + 1) % len(waitMessages)
		g.mu.Unlock()

		if g.metrics != nil {
			g.metrics.BusyRejections.Inc()
		}
		g.log.Debug(context.Background(), "user busy, wait notice scheduled", "user", userID, "index", idx)
		if g.notifier != nil {
			g.notifier.NotifyWait(whatsAppID, msg)
		}
		return false
	}
	g.busy[userID] = true
	g.mu.Unlock()
	return true
}

// Leave releases the user's slot. It is unconditional and idempotent so
// callers can defer it at turn start.
func (g *Gate) Leave(userID string) {
	g.mu.Lock()
	delete(g.busy, userID)
	g.mu.Unlock()
}

// IsBusy reports whether a turn is in flight for the user.
func (g *Gate) IsBusy(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy[userID]
}

// Touch refreshes the user's activity timestamp.
func (g *Gate) Touch(userID string) {
	g.mu.Lock()
	g.lastActivity[userID] = g.now()
	g.mu.Unlock()
}

// Forget drops every record of the user. Used when a session is reset.
func (g *Gate) Forget(userID string) {
	g.mu.Lock()
	delete(g.busy, userID)
	delete(g.waitIndex, userID)
	delete(g.lastActivity, userID)
	g.mu.Unlock()
}

// idleSince returns the users whose last activity precedes the cutoff and
// who are not mid-turn.
func (g *Gate) idleSince(cutoff time.Time) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var idle []string
	for userID, last := range g.lastActivity {
		if last.Before(cutoff) && !g.busy[userID] {
			idle = append(idle, userID)
		}
	}
	return idle
}
