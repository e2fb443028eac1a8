package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/aloqahq/aloqa/internal/fault"
	"github.com/aloqahq/aloqa/internal/models"
	"github.com/aloqahq/aloqa/internal/registry"
	"github.com/aloqahq/aloqa/internal/session"
)

// Requester dialog: unit -> responder -> name -> phone -> request text,
// then a reply loop while the request is accepted.

func (r *Router) startRequestDialog(ctx context.Context, ev InboundEvent) {
	if err := registry.UpsertProfile(r.db, ev.Identity, ev.DisplayName, ""); err != nil {
		r.logger.Printf("engine: profile upsert for %d: %v", ev.Identity, err)
	}
	units := r.dir.Units()
	if len(units) == 0 {
		r.notifier.Notify(ctx, ev.Identity, msgNoUnits)
		return
	}
	r.sessions.Set(ev.Identity, session.SelectingUnit, session.Data{})
	r.notifier.Notify(ctx, ev.Identity, msgGreeting, unitKeyboard(units)...)
}

func (r *Router) handleRequesterAction(ctx context.Context, ev InboundEvent) {
	state, data, active := r.sessions.Get(ev.Identity)

	switch ev.Action {
	case actionUnit:
		if !active || state != session.SelectingUnit {
			r.notifier.Notify(ctx, ev.Identity, msgStaleAction)
			return
		}
		r.requesterUnit(ctx, ev)
	case actionResponder:
		if !active || state != session.SelectingResponder {
			r.notifier.Notify(ctx, ev.Identity, msgStaleAction)
			return
		}
		r.requesterResponder(ctx, ev, data)
	case actionCancelReq:
		r.cancelRequest(ctx, ev)
	case actionReply:
		r.openReply(ctx, ev)
	default:
		r.notifier.Notify(ctx, ev.Identity, msgStaleAction)
	}
}

func (r *Router) requesterUnit(ctx context.Context, ev InboundEvent) {
	unit := ev.Ref
	responders := r.dir.Responders(unit)
	if !r.dir.HasUnit(unit) {
		r.notifier.Notify(ctx, ev.Identity, msgStaleAction)
		return
	}
	if len(responders) == 0 {
		r.notifier.Notify(ctx, ev.Identity, msgNoResponders, unitKeyboard(r.dir.Units())...)
		return
	}
	r.sessions.Set(ev.Identity, session.SelectingResponder, session.Data{Unit: unit})
	r.notifier.Notify(ctx, ev.Identity, "Pick a responder in "+unit+".", responderKeyboard(responders)...)
}

func (r *Router) requesterResponder(ctx context.Context, ev InboundEvent, data session.Data) {
	id, err := strconv.ParseInt(ev.Ref, 10, 64)
	if err != nil || !r.dir.HasResponder(data.Unit, id) {
		r.notifier.Notify(ctx, ev.Identity, msgStaleAction)
		return
	}
	r.sessions.Set(ev.Identity, session.EnteringName, session.Data{ResponderID: id})
	r.notifier.Notify(ctx, ev.Identity, msgAskName, cancelRow())
}

func (r *Router) requesterName(ctx context.Context, ev InboundEvent) {
	name := strings.TrimSpace(ev.Text)
	if len([]rune(name)) < 2 {
		r.notifier.Notify(ctx, ev.Identity, msgNameTooShort)
		return
	}
	r.sessions.Set(ev.Identity, session.EnteringPhone, session.Data{Name: name})
	r.notifier.AskContact(ctx, ev.Identity, msgAskPhone)
}

func (r *Router) requesterPhone(ctx context.Context, ev InboundEvent) {
	phone := ev.Phone
	if ev.Kind == EventText {
		phone = strings.TrimSpace(ev.Text)
	}
	if phone == "" {
		r.notifier.AskContact(ctx, ev.Identity, msgAskPhone)
		return
	}
	_, data, _ := r.sessions.Get(ev.Identity)
	if err := registry.UpsertProfile(r.db, ev.Identity, data.Name, phone); err != nil {
		r.logger.Printf("engine: profile upsert for %d: %v", ev.Identity, err)
	}
	r.sessions.Set(ev.Identity, session.EnteringRequestText, session.Data{})
	r.notifier.Notify(ctx, ev.Identity, msgAskBody, cancelRow())
}

func (r *Router) requesterBody(ctx context.Context, ev InboundEvent, data session.Data) {
	body := strings.TrimSpace(ev.Text)
	if body == "" {
		r.notifier.Notify(ctx, ev.Identity, msgBodyEmpty)
		return
	}

	prof, err := registry.Profile(r.db, ev.Identity)
	if err != nil {
		r.surface(ctx, ev.Identity, err)
		r.sessions.Clear(ev.Identity)
		return
	}

	req, err := registry.Create(r.db, r.dir, registry.CreateOpts{
		RequesterID:    ev.Identity,
		RequesterName:  prof.Name,
		RequesterPhone: prof.Phone,
		ResponderID:    data.ResponderID,
		Unit:           data.Unit,
		Body:           body,
	})
	if err != nil {
		r.surface(ctx, ev.Identity, err)
		r.sessions.Clear(ev.Identity)
		return
	}
	r.sessions.Clear(ev.Identity)

	_, responder, _ := r.dir.FindByChatID(req.ResponderID)
	r.notifier.Notify(ctx, ev.Identity, submissionText(req, responder.Name), cancelRequestRows(req.ID)...)
	if !r.notifier.Notify(ctx, req.ResponderID, newRequestText(req), acceptRejectRows(req.ID)...) {
		r.notifier.Notify(ctx, ev.Identity, msgUndelivered)
	}
}

// cancelRequest withdraws a pending request. Only its requester may
// cancel, and only while it is still pending; a refusal notifies nobody
// but the actor.
func (r *Router) cancelRequest(ctx context.Context, ev InboundEvent) {
	req, err := registry.Get(r.db, ev.Ref)
	if err != nil {
		r.surface(ctx, ev.Identity, err)
		return
	}
	if req.RequesterID != ev.Identity {
		r.notifier.Notify(ctx, ev.Identity, msgNotFound)
		return
	}
	req, err = registry.Cancel(r.db, ev.Ref)
	if err != nil {
		r.surface(ctx, ev.Identity, err)
		return
	}
	r.notifier.Notify(ctx, ev.Identity, "Your request "+req.ID+" was cancelled.")
	r.notifier.Notify(ctx, req.ResponderID, cancelledText(req.ID))
}

func (r *Router) openReply(ctx context.Context, ev InboundEvent) {
	req, err := registry.Get(r.db, ev.Ref)
	if err != nil {
		r.surface(ctx, ev.Identity, err)
		return
	}
	if req.RequesterID != ev.Identity {
		r.notifier.Notify(ctx, ev.Identity, msgNotFound)
		return
	}
	if req.Status != models.StatusAccepted {
		r.surface(ctx, ev.Identity, fault.ErrInvalidTransition)
		return
	}
	r.sessions.Set(ev.Identity, session.AwaitingResponseText, session.Data{RequestID: req.ID})
	r.notifier.Notify(ctx, ev.Identity, msgAskReply, cancelRow())
}

func (r *Router) requesterReply(ctx context.Context, ev InboundEvent, data session.Data) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		r.notifier.Notify(ctx, ev.Identity, msgBodyEmpty)
		return
	}
	req, err := registry.AppendMessage(r.db, data.RequestID, models.SenderRequester, text)
	r.sessions.Clear(ev.Identity)
	if err != nil {
		r.surface(ctx, ev.Identity, err)
		return
	}
	r.notifier.Notify(ctx, req.ResponderID, relayToResponderText(req, text), continueFinishRows(req.ID)...)
	r.notifier.Notify(ctx, ev.Identity, msgReplySent)
}

// finishRequest closes an accepted request. Either party of the request
// may trigger it; the other party is notified best-effort.
func (r *Router) finishRequest(ctx context.Context, ev InboundEvent) {
	req, err := registry.Get(r.db, ev.Ref)
	if err != nil {
		r.surface(ctx, ev.Identity, err)
		return
	}
	if req.RequesterID != ev.Identity && req.ResponderID != ev.Identity {
		r.notifier.Notify(ctx, ev.Identity, msgNotFound)
		return
	}
	req, err = registry.Finish(r.db, ev.Ref)
	if err != nil {
		r.surface(ctx, ev.Identity, err)
		return
	}
	other := req.RequesterID
	if ev.Identity == req.RequesterID {
		other = req.ResponderID
	}
	r.notifier.Notify(ctx, ev.Identity, finishedText(req.ID))
	r.notifier.Notify(ctx, other, finishedText(req.ID))
}
