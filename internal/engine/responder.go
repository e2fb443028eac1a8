package engine

import (
	"context"
	"strings"

	"github.com/aloqahq/aloqa/internal/fault"
	"github.com/aloqahq/aloqa/internal/models"
	"github.com/aloqahq/aloqa/internal/registry"
	"github.com/aloqahq/aloqa/internal/session"
)

// Responder side: a panel of assigned requests, accept/reject on
// pending ones, and a respond loop on accepted ones.

func (r *Router) responderPanel(ctx context.Context, identity int64) {
	reqs, err := registry.ListByResponder(r.db, identity)
	if err != nil {
		r.surface(ctx, identity, err)
		return
	}
	r.notifier.Notify(ctx, identity, responderPanelText(reqs), responderPanelRows(reqs)...)
}

func (r *Router) handleResponderAction(ctx context.Context, ev InboundEvent) {
	switch ev.Action {
	case actionView:
		r.viewRequest(ctx, ev)
	case actionAccept:
		r.acceptRequest(ctx, ev)
	case actionReject:
		r.openReject(ctx, ev)
	case actionReason:
		r.rejectWithReason(ctx, ev)
	case actionRespond, actionContinue:
		r.openResponse(ctx, ev)
	default:
		r.notifier.Notify(ctx, ev.Identity, msgStaleAction)
	}
}

// loadAssigned fetches a request and verifies the actor is its assigned
// responder. Requests assigned elsewhere read as not found.
func (r *Router) loadAssigned(ctx context.Context, ev InboundEvent, id string) (*models.Request, bool) {
	req, err := registry.Get(r.db, id)
	if err != nil {
		r.surface(ctx, ev.Identity, err)
		return nil, false
	}
	if req.ResponderID != ev.Identity {
		r.notifier.Notify(ctx, ev.Identity, msgNotFound)
		return nil, false
	}
	return req, true
}

func (r *Router) viewRequest(ctx context.Context, ev InboundEvent) {
	req, ok := r.loadAssigned(ctx, ev, ev.Ref)
	if !ok {
		return
	}
	r.notifier.Notify(ctx, ev.Identity, requestDetailText(req), requestDetailRows(req)...)
}

func (r *Router) acceptRequest(ctx context.Context, ev InboundEvent) {
	if _, ok := r.loadAssigned(ctx, ev, ev.Ref); !ok {
		return
	}
	req, err := registry.Accept(r.db, ev.Ref)
	if err != nil {
		r.surface(ctx, ev.Identity, err)
		return
	}
	_, responder, _ := r.dir.FindByChatID(ev.Identity)
	r.notifier.Notify(ctx, req.RequesterID, acceptedText(responder.Name))
	r.notifier.Notify(ctx, ev.Identity, "Request "+req.ID+" accepted.", respondRow(req.ID)...)
}

// openReject shows the reason picker without changing the request; the
// transition happens only when a reason is chosen.
func (r *Router) openReject(ctx context.Context, ev InboundEvent) {
	req, ok := r.loadAssigned(ctx, ev, ev.Ref)
	if !ok {
		return
	}
	if req.Status != models.StatusPending {
		r.surface(ctx, ev.Identity, fault.ErrInvalidTransition)
		return
	}
	r.notifier.Notify(ctx, ev.Identity, msgPickReason, reasonKeyboard(req.ID, r.reasons)...)
}

func (r *Router) rejectWithReason(ctx context.Context, ev InboundEvent) {
	id, idx, ok := splitReasonRef(ev.Ref)
	if !ok || idx < 0 || idx >= len(r.reasons) {
		r.notifier.Notify(ctx, ev.Identity, msgStaleAction)
		return
	}
	if _, ok := r.loadAssigned(ctx, ev, id); !ok {
		return
	}
	req, err := registry.Reject(r.db, id, r.reasons[idx])
	if err != nil {
		r.surface(ctx, ev.Identity, err)
		return
	}
	r.notifier.Notify(ctx, req.RequesterID, rejectedText(req.RejectReason))
	r.notifier.Notify(ctx, ev.Identity, "Request "+req.ID+" rejected.\nReason: "+req.RejectReason)
}

func (r *Router) openResponse(ctx context.Context, ev InboundEvent) {
	req, ok := r.loadAssigned(ctx, ev, ev.Ref)
	if !ok {
		return
	}
	if req.Status != models.StatusAccepted {
		r.surface(ctx, ev.Identity, fault.ErrInvalidTransition)
		return
	}
	r.sessions.Set(ev.Identity, session.Responding, session.Data{RequestID: req.ID})
	r.notifier.Notify(ctx, ev.Identity, msgAskResponse, cancelRow())
}

func (r *Router) responderResponse(ctx context.Context, ev InboundEvent, data session.Data) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		r.notifier.Notify(ctx, ev.Identity, msgBodyEmpty)
		return
	}
	req, err := registry.AppendMessage(r.db, data.RequestID, models.SenderResponder, text)
	r.sessions.Clear(ev.Identity)
	if err != nil {
		r.surface(ctx, ev.Identity, err)
		return
	}
	_, responder, _ := r.dir.FindByChatID(ev.Identity)
	r.notifier.Notify(ctx, req.RequesterID, relayToRequesterText(responder.Name, text), replyFinishRows(req.ID)...)
	r.notifier.Notify(ctx, ev.Identity, msgResponseSent, continueFinishRows(req.ID)...)
}
