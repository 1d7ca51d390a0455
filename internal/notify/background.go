package notify

import "context"

// Background couples the dispatcher with the WhatsApp sender for
// fire-and-forget deliveries: progress notices from tools, wait notices
// from the admission gate, read receipts. Callers never wait on these.
type Background struct {
	dispatcher *Dispatcher
	whatsapp   *WhatsAppSender
}

// NewBackground wraps the dispatcher and sender.
func NewBackground(dispatcher *Dispatcher, whatsapp *WhatsAppSender) *Background {
	return &Background{dispatcher: dispatcher, whatsapp: whatsapp}
}

// Text schedules a plain text send.
func (b *Background) Text(to, body string) {
	b.dispatcher.Submit("whatsapp_text", func(ctx context.Context) error {
		return b.whatsapp.SendText(ctx, to, body)
	})
}

// Image schedules an image send.
func (b *Background) Image(to, link, caption string) {
	b.dispatcher.Submit("whatsapp_image", func(ctx context.Context) error {
		return b.whatsapp.SendImage(ctx, to, link, caption)
	})
}

// MarkAsRead schedules a read receipt.
func (b *Background) MarkAsRead(messageID string) {
	b.dispatcher.Submit("whatsapp_mark_read", func(ctx context.Context) error {
		return b.whatsapp.MarkAsRead(ctx, messageID)
	})
}

// Run schedules an arbitrary task on the shared queue. Tools use it for
// email notices that should not hold up the reasoning loop.
func (b *Background) Run(name string, fn func(ctx context.Context) error) {
	b.dispatcher.Submit(name, fn)
}

// NotifyWait delivers an admission wait notice with retries; it is the one
// background send the user is actively waiting on.
func (b *Background) NotifyWait(whatsAppID, message string) {
	b.dispatcher.Submit("wait_notice", func(ctx context.Context) error {
		return b.whatsapp.SendTextWithRetry(ctx, whatsAppID, message)
	})
}
