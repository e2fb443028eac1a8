// Package session tracks where each chat identity currently is inside a
// multi-step dialog. A session exists only while a dialog is in flight;
// every terminal path (completion, cancellation, error) must clear it.
package session

import "sync"

// State is a dialog position. The sets below are scoped per role and
// never overlap, so a state alone identifies both the role and the step.
type State string

// Requester dialog states.
const (
	SelectingUnit        State = "selecting_unit"
	SelectingResponder   State = "selecting_responder"
	EnteringName         State = "entering_name"
	EnteringPhone        State = "entering_phone"
	EnteringRequestText  State = "entering_request_text"
	AwaitingResponseText State = "awaiting_response"
)

// Responder dialog states.
const (
	Responding State = "responding"
)

// Administrator dialog states.
const (
	AddingResponderUnit   State = "adding_responder_unit"
	AddingResponderName   State = "adding_responder_name"
	AddingResponderChatID State = "adding_responder_chatid"
	EditingUnit           State = "editing_unit"
	SelectingEditTarget   State = "selecting_responder_to_edit"
	EditingFieldChoice    State = "editing_field_choice"
	EditingName           State = "editing_name"
	EditingChatID         State = "editing_chatid"
)

// Data is the scratch context a dialog accumulates step by step. Set
// merges non-zero fields, so each step only supplies what it learned.
type Data struct {
	Unit        string // selected or edit-target unit
	ResponderID int64  // selected responder chat id
	RequestID   string // request under discussion
	EditChatID  int64  // stable key of the responder being edited
	Name        string // draft display name
}

// merge overlays non-zero fields of in onto d.
func (d *Data) merge(in Data) {
	if in.Unit != "" {
		d.Unit = in.Unit
	}
	if in.ResponderID != 0 {
		d.ResponderID = in.ResponderID
	}
	if in.RequestID != "" {
		d.RequestID = in.RequestID
	}
	if in.EditChatID != 0 {
		d.EditChatID = in.EditChatID
	}
	if in.Name != "" {
		d.Name = in.Name
	}
}

type entry struct {
	state State
	data  Data
}

// Tracker holds at most one live session per chat identity. Safe for
// concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[int64]*entry
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[int64]*entry)}
}

// Get returns the identity's current state and scratch data. The second
// return is false when the identity is idle.
func (t *Tracker) Get(identity int64) (State, Data, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.sessions[identity]
	if !ok {
		return "", Data{}, false
	}
	return e.state, e.data, true
}

// Set replaces the identity's state and merges scratch data into what
// the dialog has accumulated so far.
func (t *Tracker) Set(identity int64, state State, data Data) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.sessions[identity]
	if !ok {
		e = &entry{}
		t.sessions[identity] = e
	}
	e.state = state
	e.data.merge(data)
}

// Clear removes the identity's session. Safe to call when idle.
func (t *Tracker) Clear(identity int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, identity)
}

// Active returns the number of identities currently mid-dialog.
func (t *Tracker) Active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
