package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/aloqahq/aloqa/internal/directory"
	"github.com/aloqahq/aloqa/internal/fault"
	"github.com/aloqahq/aloqa/internal/session"
)

// Role is the category an identity resolves to for a given event.
type Role int

const (
	RoleRequester Role = iota
	RoleResponder
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleResponder:
		return "responder"
	case RoleAdmin:
		return "admin"
	}
	return "requester"
}

// RouterOpts configures a Router.
type RouterOpts struct {
	DB        *gorm.DB
	Directory *directory.Store
	Adapter   Adapter
	// AdminChatID is the single administrator identity.
	AdminChatID int64
	// RejectionReasons is the fixed reason list offered to responders.
	RejectionReasons []string
	// Sessions is optional; a fresh tracker is created when nil.
	Sessions *session.Tracker
	// Out receives log output. Defaults to os.Stderr.
	Out io.Writer
}

// Router resolves each inbound event to a role and dialog step and runs
// the matching handler. Events from the same identity are handled one
// at a time; distinct identities may proceed concurrently.
type Router struct {
	db       *gorm.DB
	dir      *directory.Store
	notifier *Notifier
	sessions *session.Tracker
	adminID  int64
	reasons  []string
	logger   *log.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewRouter builds a Router from opts. DB, Directory, and Adapter are
// required.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.DB == nil {
		return nil, errors.New("engine: RouterOpts.DB is required")
	}
	if opts.Directory == nil {
		return nil, errors.New("engine: RouterOpts.Directory is required")
	}
	if opts.Adapter == nil {
		return nil, errors.New("engine: RouterOpts.Adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewTracker()
	}
	return &Router{
		db:       opts.DB,
		dir:      opts.Directory,
		notifier: NewNotifier(opts.Adapter, out),
		sessions: sessions,
		adminID:  opts.AdminChatID,
		reasons:  opts.RejectionReasons,
		logger:   log.New(out, "", log.LstdFlags),
		locks:    make(map[int64]*sync.Mutex),
	}, nil
}

// lockIdentity serializes handling per identity. The returned func
// releases the lock.
func (r *Router) lockIdentity(identity int64) func() {
	r.mu.Lock()
	l, ok := r.locks[identity]
	if !ok {
		l = &sync.Mutex{}
		r.locks[identity] = l
	}
	r.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// roleOf resolves an identity. Admin wins over a roster entry, and any
// identity on the roster is a responder; everyone else is a requester.
func (r *Router) roleOf(identity int64) Role {
	if identity == r.adminID {
		return RoleAdmin
	}
	if _, _, ok := r.dir.FindByChatID(identity); ok {
		return RoleResponder
	}
	return RoleRequester
}

// HandleEvent processes one inbound event to completion. A panic in a
// handler is recovered and logged so one bad event cannot take down the
// event loop.
func (r *Router) HandleEvent(ctx context.Context, ev InboundEvent) {
	unlock := r.lockIdentity(ev.Identity)
	defer unlock()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Printf("engine: handler panic for %d: %v", ev.Identity, rec)
			r.notifier.Notify(ctx, ev.Identity, msgInternal)
		}
	}()

	role := r.roleOf(ev.Identity)
	switch {
	case ev.Kind == EventText && isStartCommand(ev.Text):
		r.sessions.Clear(ev.Identity)
		r.handleStart(ctx, role, ev)
	case ev.Kind == EventAction:
		r.handleAction(ctx, role, ev)
	default:
		r.handleDialog(ctx, role, ev)
	}
}

func isStartCommand(text string) bool {
	cmd, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	return cmd == "/start"
}

// handleStart renders the role's entry panel.
func (r *Router) handleStart(ctx context.Context, role Role, ev InboundEvent) {
	switch role {
	case RoleAdmin:
		r.adminMenu(ctx, ev.Identity)
	case RoleResponder:
		r.responderPanel(ctx, ev.Identity)
	default:
		r.startRequestDialog(ctx, ev)
	}
}

// handleAction dispatches a button press. Shared actions come first;
// the rest are scoped to the role the identity resolved to, so a
// requester can never drive responder transitions even with a forged
// payload.
func (r *Router) handleAction(ctx context.Context, role Role, ev InboundEvent) {
	switch ev.Action {
	case actionCancelDialog:
		r.sessions.Clear(ev.Identity)
		r.notifier.Notify(ctx, ev.Identity, msgDialogCancelled)
		return
	case actionBack:
		r.sessions.Clear(ev.Identity)
		r.handleStart(ctx, role, ev)
		return
	case actionFinish:
		r.finishRequest(ctx, ev)
		return
	}

	switch role {
	case RoleAdmin:
		r.handleAdminAction(ctx, ev)
	case RoleResponder:
		r.handleResponderAction(ctx, ev)
	default:
		r.handleRequesterAction(ctx, ev)
	}
}

// handleDialog routes free text and contact shares by the identity's
// session state. Text outside any dialog gets a hint rather than
// silence.
func (r *Router) handleDialog(ctx context.Context, role Role, ev InboundEvent) {
	state, data, ok := r.sessions.Get(ev.Identity)
	if !ok {
		switch role {
		case RoleAdmin:
			r.adminMenu(ctx, ev.Identity)
		case RoleResponder:
			r.responderPanel(ctx, ev.Identity)
		default:
			r.notifier.Notify(ctx, ev.Identity, msgStartHint)
		}
		return
	}

	switch state {
	case session.EnteringName:
		r.requesterName(ctx, ev)
	case session.EnteringPhone:
		r.requesterPhone(ctx, ev)
	case session.EnteringRequestText:
		r.requesterBody(ctx, ev, data)
	case session.AwaitingResponseText:
		r.requesterReply(ctx, ev, data)
	case session.Responding:
		r.responderResponse(ctx, ev, data)
	case session.AddingResponderName:
		r.adminAddName(ctx, ev)
	case session.AddingResponderChatID:
		r.adminAddChatID(ctx, ev, data)
	case session.EditingName:
		r.adminEditName(ctx, ev, data)
	case session.EditingChatID:
		r.adminEditChatID(ctx, ev, data)
	default:
		// Selection states expect a button press, not text.
		r.notifier.Notify(ctx, ev.Identity, msgInvalidInput)
	}
}

// surface translates a domain error into a user-facing refusal. Errors
// outside the known taxonomy are logged and reported generically.
func (r *Router) surface(ctx context.Context, identity int64, err error) {
	switch {
	case errors.Is(err, fault.ErrNotFound):
		r.notifier.Notify(ctx, identity, msgNotFound)
	case errors.Is(err, fault.ErrInvalidTransition):
		r.notifier.Notify(ctx, identity, msgAlreadyClosed)
	case errors.Is(err, fault.ErrInvalidInput):
		r.notifier.Notify(ctx, identity, msgInvalidInput)
	default:
		r.logger.Printf("engine: handler error for %d: %v", identity, err)
		r.notifier.Notify(ctx, identity, msgInternal)
	}
}
