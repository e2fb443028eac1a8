// Package telegram implements the engine Adapter for Telegram using
// long polling.
package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aloqahq/aloqa/internal/engine"
)

// pollTimeout is the long-poll timeout in seconds.
const pollTimeout = 30

// botAPI abstracts the tgbotapi methods we use, enabling test fakes.
// *tgbotapi.BotAPI satisfies it directly.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	StopReceivingUpdates()
}

// Adapter implements engine.Adapter for Telegram.
type Adapter struct {
	api      botAPI
	botToken string

	mu        sync.Mutex
	connected bool
	closed    bool
	inbound   chan engine.InboundEvent
}

// AdapterOpts holds parameters for creating a Telegram Adapter.
type AdapterOpts struct {
	BotToken string
	// For testing: inject a fake API instead of the real Telegram client.
	API botAPI
}

// New creates a Telegram Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.API == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	return &Adapter{
		api:      opts.API,
		botToken: opts.BotToken,
		inbound:  make(chan engine.InboundEvent, 100),
	}, nil
}

// Connect authenticates against the Bot API.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("telegram: adapter already closed")
	}
	if a.connected {
		return nil
	}
	if a.api == nil {
		api, err := tgbotapi.NewBotAPI(a.botToken)
		if err != nil {
			return fmt.Errorf("telegram: authenticate: %w", err)
		}
		a.api = api
	}
	a.connected = true
	return nil
}

// Listen starts long polling and returns the translated event channel.
// Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan engine.InboundEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("telegram: not connected")
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	updates := a.api.GetUpdatesChan(cfg)

	go func() {
		defer close(a.inbound)
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				ev, ok := a.translate(update)
				if !ok {
					continue
				}
				select {
				case a.inbound <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return a.inbound, nil
}

// translate converts one Telegram update into an engine event. Updates
// with no usable payload are dropped.
func (a *Adapter) translate(update tgbotapi.Update) (engine.InboundEvent, bool) {
	if cq := update.CallbackQuery; cq != nil && cq.From != nil {
		// Acknowledge the press so the client stops its spinner.
		if _, err := a.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			log.Printf("telegram: answer callback: %v", err)
		}
		name, ref := engine.DecodeAction(cq.Data)
		return engine.InboundEvent{
			Identity:    cq.From.ID,
			DisplayName: displayName(cq.From),
			Kind:        engine.EventAction,
			Action:      name,
			Ref:         ref,
			Timestamp:   time.Now(),
		}, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return engine.InboundEvent{}, false
	}
	ev := engine.InboundEvent{
		Identity:    msg.From.ID,
		DisplayName: displayName(msg.From),
		Timestamp:   msg.Time(),
	}
	if msg.Contact != nil {
		ev.Kind = engine.EventContact
		ev.Phone = msg.Contact.PhoneNumber
		return ev, true
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return engine.InboundEvent{}, false
	}
	ev.Kind = engine.EventText
	ev.Text = text
	return ev, true
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}

// Send delivers one outbound message. Action rows render as an inline
// keyboard; a contact request renders as a one-time reply keyboard.
func (a *Adapter) Send(ctx context.Context, msg engine.OutboundMessage) error {
	a.mu.Lock()
	api, connected := a.api, a.connected
	a.mu.Unlock()
	if !connected {
		return fmt.Errorf("telegram: not connected")
	}

	out := tgbotapi.NewMessage(msg.Recipient, msg.Text)
	switch {
	case len(msg.Actions) > 0:
		out.ReplyMarkup = inlineKeyboard(msg.Actions)
	case msg.RequestContact:
		kb := tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact("Share phone number")),
		)
		kb.OneTimeKeyboard = true
		out.ReplyMarkup = kb
	}
	if _, err := api.Send(out); err != nil {
		return fmt.Errorf("telegram: send to %d: %w", msg.Recipient, err)
	}
	return nil
}

func inlineKeyboard(rows [][]engine.Action) tgbotapi.InlineKeyboardMarkup {
	kb := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, action := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(
				action.Label, engine.EncodeAction(action.Name, action.Ref)))
		}
		kb = append(kb, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kb...)
}

// Close stops long polling.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.connected {
		a.api.StopReceivingUpdates()
		a.connected = false
	}
	return nil
}
