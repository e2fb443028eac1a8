package engine

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/aloqahq/aloqa/internal/fault"
	"github.com/aloqahq/aloqa/internal/registry"
	"github.com/aloqahq/aloqa/internal/session"
)

// Admin side: aggregate stats, roster listing, and the add/edit
// responder dialogs. Roster mutations apply in memory first; a failed
// roster write keeps the mutation and warns the admin instead of
// rolling back.

func (r *Router) adminMenu(ctx context.Context, identity int64) {
	r.notifier.Notify(ctx, identity, msgAdminMenu, adminMenuKeyboard()...)
}

func (r *Router) handleAdminAction(ctx context.Context, ev InboundEvent) {
	state, data, active := r.sessions.Get(ev.Identity)

	switch ev.Action {
	case actionAdminStats:
		r.adminStats(ctx, ev.Identity)
	case actionAdminRoster:
		r.notifier.Notify(ctx, ev.Identity, rosterText(r.dir))
	case actionAdminAdd:
		r.adminStartAdd(ctx, ev.Identity)
	case actionAdminUnit:
		if !active || state != session.AddingResponderUnit {
			r.notifier.Notify(ctx, ev.Identity, msgStaleAction)
			return
		}
		r.adminAddUnit(ctx, ev)
	case actionAdminEdit:
		r.adminStartEdit(ctx, ev.Identity)
	case actionEditUnit:
		if !active || state != session.EditingUnit {
			r.notifier.Notify(ctx, ev.Identity, msgStaleAction)
			return
		}
		r.adminEditUnit(ctx, ev)
	case actionEditTarget:
		if !active || state != session.SelectingEditTarget {
			r.notifier.Notify(ctx, ev.Identity, msgStaleAction)
			return
		}
		r.adminEditTarget(ctx, ev, data)
	case actionEditName:
		if !active || state != session.EditingFieldChoice {
			r.notifier.Notify(ctx, ev.Identity, msgStaleAction)
			return
		}
		r.sessions.Set(ev.Identity, session.EditingName, session.Data{})
		r.notifier.Notify(ctx, ev.Identity, msgAskRespName, cancelRow())
	case actionEditChatID:
		if !active || state != session.EditingFieldChoice {
			r.notifier.Notify(ctx, ev.Identity, msgStaleAction)
			return
		}
		r.sessions.Set(ev.Identity, session.EditingChatID, session.Data{})
		r.notifier.Notify(ctx, ev.Identity, msgAskRespChatID, cancelRow())
	default:
		r.notifier.Notify(ctx, ev.Identity, msgStaleAction)
	}
}

func (r *Router) adminStats(ctx context.Context, identity int64) {
	stats, err := registry.StatsByUnit(r.db)
	if err != nil {
		r.surface(ctx, identity, err)
		return
	}
	r.notifier.Notify(ctx, identity, statsText(stats))
}

func (r *Router) adminStartAdd(ctx context.Context, identity int64) {
	units := r.dir.Units()
	if len(units) == 0 {
		r.notifier.Notify(ctx, identity, msgNoUnits)
		return
	}
	r.sessions.Set(identity, session.AddingResponderUnit, session.Data{})
	r.notifier.Notify(ctx, identity, msgPickUnit, adminUnitKeyboard(units, actionAdminUnit)...)
}

func (r *Router) adminAddUnit(ctx context.Context, ev InboundEvent) {
	if !r.dir.HasUnit(ev.Ref) {
		r.notifier.Notify(ctx, ev.Identity, msgStaleAction)
		return
	}
	r.sessions.Set(ev.Identity, session.AddingResponderName, session.Data{Unit: ev.Ref})
	r.notifier.Notify(ctx, ev.Identity, msgAskRespName, cancelRow())
}

func (r *Router) adminAddName(ctx context.Context, ev InboundEvent) {
	name := strings.TrimSpace(ev.Text)
	if len([]rune(name)) < 2 {
		r.notifier.Notify(ctx, ev.Identity, msgNameTooShort)
		return
	}
	r.sessions.Set(ev.Identity, session.AddingResponderChatID, session.Data{Name: name})
	r.notifier.Notify(ctx, ev.Identity, msgAskRespChatID, cancelRow())
}

func (r *Router) adminAddChatID(ctx context.Context, ev InboundEvent, data session.Data) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(ev.Text), 10, 64)
	if err != nil {
		r.notifier.Notify(ctx, ev.Identity, msgBadChatID)
		return
	}
	err = r.dir.AddResponder(data.Unit, data.Name, chatID)
	switch {
	case errors.Is(err, fault.ErrInvalidInput):
		r.notifier.Notify(ctx, ev.Identity, msgDupChatID)
		return
	case errors.Is(err, fault.ErrNotFound):
		r.sessions.Clear(ev.Identity)
		r.notifier.Notify(ctx, ev.Identity, msgEntryGone)
		return
	case err != nil:
		// Roster write failed; the entry is live in memory.
		r.sessions.Clear(ev.Identity)
		r.notifier.Notify(ctx, ev.Identity, msgSaveWarning)
		return
	}
	r.sessions.Clear(ev.Identity)
	r.notifier.Notify(ctx, ev.Identity,
		"Added "+data.Name+" ("+strconv.FormatInt(chatID, 10)+") to "+data.Unit+".")
}

func (r *Router) adminStartEdit(ctx context.Context, identity int64) {
	units := r.dir.Units()
	if len(units) == 0 {
		r.notifier.Notify(ctx, identity, msgNoUnits)
		return
	}
	r.sessions.Set(identity, session.EditingUnit, session.Data{})
	r.notifier.Notify(ctx, identity, msgPickUnit, adminUnitKeyboard(units, actionEditUnit)...)
}

func (r *Router) adminEditUnit(ctx context.Context, ev InboundEvent) {
	responders := r.dir.Responders(ev.Ref)
	if len(responders) == 0 {
		r.sessions.Clear(ev.Identity)
		r.notifier.Notify(ctx, ev.Identity, msgNoResponders)
		return
	}
	r.sessions.Set(ev.Identity, session.SelectingEditTarget, session.Data{Unit: ev.Ref})
	r.notifier.Notify(ctx, ev.Identity, msgPickResponder, editTargetKeyboard(responders)...)
}

// adminEditTarget pins the responder being edited by chat id, the one
// stable key across later roster changes.
func (r *Router) adminEditTarget(ctx context.Context, ev InboundEvent, data session.Data) {
	chatID, err := strconv.ParseInt(ev.Ref, 10, 64)
	if err != nil || !r.dir.HasResponder(data.Unit, chatID) {
		r.notifier.Notify(ctx, ev.Identity, msgStaleAction)
		return
	}
	r.sessions.Set(ev.Identity, session.EditingFieldChoice, session.Data{EditChatID: chatID})
	r.notifier.Notify(ctx, ev.Identity, msgPickField, editFieldKeyboard()...)
}

func (r *Router) adminEditName(ctx context.Context, ev InboundEvent, data session.Data) {
	name := strings.TrimSpace(ev.Text)
	if len([]rune(name)) < 2 {
		r.notifier.Notify(ctx, ev.Identity, msgNameTooShort)
		return
	}
	err := r.dir.RenameResponder(data.Unit, data.EditChatID, name)
	r.finishRosterEdit(ctx, ev.Identity, err, "Renamed to "+name+".")
}

func (r *Router) adminEditChatID(ctx context.Context, ev InboundEvent, data session.Data) {
	newID, err := strconv.ParseInt(strings.TrimSpace(ev.Text), 10, 64)
	if err != nil {
		r.notifier.Notify(ctx, ev.Identity, msgBadChatID)
		return
	}
	err = r.dir.SetResponderChatID(data.Unit, data.EditChatID, newID)
	if errors.Is(err, fault.ErrInvalidInput) {
		r.notifier.Notify(ctx, ev.Identity, msgDupChatID)
		return
	}
	r.finishRosterEdit(ctx, ev.Identity, err,
		"Chat id changed to "+strconv.FormatInt(newID, 10)+".")
}

func (r *Router) finishRosterEdit(ctx context.Context, identity int64, err error, confirm string) {
	r.sessions.Clear(identity)
	switch {
	case errors.Is(err, fault.ErrNotFound):
		r.notifier.Notify(ctx, identity, msgEntryGone)
	case errors.Is(err, fault.ErrInvalidInput):
		r.notifier.Notify(ctx, identity, msgInvalidInput)
	case err != nil:
		r.notifier.Notify(ctx, identity, msgSaveWarning)
	default:
		r.notifier.Notify(ctx, identity, confirm)
	}
}
