package engine

import (
	"context"
	"io"
	"log"
	"os"
)

// Notifier sends outbound messages best-effort. Delivery failures are
// logged and reported to the caller as an undelivered result, never as
// an error: a recipient who blocked the bot must not abort the handler
// that tried to reach them.
type Notifier struct {
	adapter Adapter
	out     io.Writer
}

// NewNotifier wraps an adapter in best-effort delivery semantics.
func NewNotifier(adapter Adapter, out io.Writer) *Notifier {
	if out == nil {
		out = os.Stderr
	}
	return &Notifier{adapter: adapter, out: out}
}

// Notify sends text with optional action rows to a recipient. It
// returns true when the transport accepted the message.
func (n *Notifier) Notify(ctx context.Context, recipient int64, text string, rows ...[]Action) bool {
	return n.deliver(ctx, OutboundMessage{
		Recipient: recipient,
		Text:      text,
		Actions:   rows,
	})
}

// AskContact sends a prompt carrying the transport's contact-share
// affordance.
func (n *Notifier) AskContact(ctx context.Context, recipient int64, text string) bool {
	return n.deliver(ctx, OutboundMessage{
		Recipient:      recipient,
		Text:           text,
		RequestContact: true,
	})
}

func (n *Notifier) deliver(ctx context.Context, msg OutboundMessage) bool {
	if err := n.adapter.Send(ctx, msg); err != nil {
		n.logf("notify: delivery to %d failed: %v", msg.Recipient, err)
		return false
	}
	return true
}

func (n *Notifier) logf(format string, args ...any) {
	log.New(n.out, "", log.LstdFlags).Printf(format, args...)
}
