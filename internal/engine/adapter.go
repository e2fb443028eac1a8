// Package engine resolves roles, tracks dialogs, and relays messages
// between requesters, responders, and the administrator over a pluggable
// chat transport.
package engine

import (
	"context"
	"strings"
	"time"
)

// Adapter is the interface that platform-specific transports must
// satisfy. Each adapter handles connection management and translation
// between platform updates and the engine's event shapes.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound events from the platform.
	// The channel is closed when the context is cancelled or the
	// adapter is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundEvent, error)

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// EventKind classifies the shape of an inbound event.
type EventKind int

const (
	// EventText is a plain text message.
	EventText EventKind = iota
	// EventContact is a structured contact/phone share.
	EventContact
	// EventAction is a labeled action selection (button press) carrying
	// an opaque action name plus an embedded reference.
	EventAction
)

// InboundEvent is a single inbound chat event tagged with the external
// identity that produced it.
type InboundEvent struct {
	Identity    int64  // external chat identity
	DisplayName string // human-readable name from the transport
	Kind        EventKind
	Text        string // EventText payload
	Phone       string // EventContact payload
	Action      string // EventAction: action name
	Ref         string // EventAction: embedded request/unit/responder reference
	Timestamp   time.Time
}

// OutboundMessage is a message for the adapter to deliver.
type OutboundMessage struct {
	Recipient      int64      // target chat identity
	Text           string     // message text
	Actions        [][]Action // rows of action buttons
	RequestContact bool       // render a contact-share affordance
}

// Action is one selectable affordance attached to an outbound message.
type Action struct {
	Label string // button text
	Name  string // action identifier, echoed back in InboundEvent.Action
	Ref   string // embedded reference, echoed back in InboundEvent.Ref
}

// EncodeAction packs an action name and reference into the single opaque
// string chat platforms carry in button callbacks.
func EncodeAction(name, ref string) string {
	if ref == "" {
		return name
	}
	return name + ":" + ref
}

// DecodeAction splits a callback payload produced by EncodeAction.
func DecodeAction(data string) (name, ref string) {
	name, ref, _ = strings.Cut(data, ":")
	return name, ref
}
