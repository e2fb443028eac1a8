package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aloqahq/aloqa/internal/directory"
	"github.com/aloqahq/aloqa/internal/models"
	"github.com/aloqahq/aloqa/internal/registry"
)

// Message texts and keyboard layouts. Keyboards are rebuilt fresh for
// every message so a stale affordance never outlives the panel that
// carried it.

const (
	msgGreeting        = "Welcome. Pick the unit your question belongs to."
	msgNoUnits         = "No units are configured yet. Please try again later."
	msgNoResponders    = "That unit has no responders yet. Pick another unit."
	msgAskName         = "Please enter your full name."
	msgNameTooShort    = "That name looks too short. Please enter your full name."
	msgAskPhone        = "Share your phone number with the button below, or type it in."
	msgAskBody         = "Describe your request in one message."
	msgBodyEmpty       = "The request text cannot be empty. Please describe your request."
	msgAskReply        = "Type your reply in one message."
	msgAskResponse     = "Type your response in one message."
	msgDialogCancelled = "Cancelled. Send /start to begin again."
	msgStartHint       = "Send /start to begin."
	msgStaleAction     = "That button is no longer active. Send /start to begin again."
	msgNotFound        = "That request could not be found."
	msgAlreadyClosed   = "That request has already been closed."
	msgInvalidInput    = "That input is not valid here."
	msgInternal        = "Something went wrong. Please try again."
	msgUndelivered     = "Your request was saved, but the responder could not be reached right now."
	msgReplySent       = "Your reply was sent."
	msgResponseSent    = "Your response was sent."
	msgPickReason      = "Pick a rejection reason."
	msgNoRequests      = "You have no requests assigned."
	msgAdminMenu       = "Admin panel. Pick an action."
	msgPickUnit        = "Pick a unit."
	msgPickResponder   = "Pick the responder to edit."
	msgPickField       = "What do you want to change?"
	msgAskRespName     = "Enter the responder's display name."
	msgAskRespChatID   = "Enter the responder's numeric chat id."
	msgBadChatID       = "That is not a numeric chat id. Enter digits only."
	msgDupChatID       = "That chat id is already on the roster. Enter a different one."
	msgEntryGone       = "That roster entry no longer exists."
	msgSaveWarning     = "Saved in memory, but writing the roster file failed. The change may be lost on restart."
)

func statusLabel(s string) string {
	switch s {
	case models.StatusPending:
		return "pending"
	case models.StatusAccepted:
		return "in progress"
	case models.StatusRejected:
		return "rejected"
	case models.StatusCancelled:
		return "cancelled"
	case models.StatusFinished:
		return "finished"
	}
	return s
}

func cancelRow() []Action {
	return []Action{{Label: "Cancel", Name: actionCancelDialog}}
}

func backRow() []Action {
	return []Action{{Label: "Back", Name: actionBack}}
}

func unitKeyboard(units []string) [][]Action {
	rows := make([][]Action, 0, len(units)+1)
	for _, u := range units {
		rows = append(rows, []Action{{Label: u, Name: actionUnit, Ref: u}})
	}
	return append(rows, cancelRow())
}

func responderKeyboard(rs []directory.Responder) [][]Action {
	rows := make([][]Action, 0, len(rs)+1)
	for _, r := range rs {
		rows = append(rows, []Action{{
			Label: r.Name,
			Name:  actionResponder,
			Ref:   strconv.FormatInt(r.ChatID, 10),
		}})
	}
	return append(rows, backRow())
}

func adminUnitKeyboard(units []string, action string) [][]Action {
	rows := make([][]Action, 0, len(units)+1)
	for _, u := range units {
		rows = append(rows, []Action{{Label: u, Name: action, Ref: u}})
	}
	return append(rows, cancelRow())
}

func editTargetKeyboard(rs []directory.Responder) [][]Action {
	rows := make([][]Action, 0, len(rs)+1)
	for _, r := range rs {
		rows = append(rows, []Action{{
			Label: fmt.Sprintf("%s (%d)", r.Name, r.ChatID),
			Name:  actionEditTarget,
			Ref:   strconv.FormatInt(r.ChatID, 10),
		}})
	}
	return append(rows, cancelRow())
}

func editFieldKeyboard() [][]Action {
	return [][]Action{
		{{Label: "Name", Name: actionEditName}, {Label: "Chat id", Name: actionEditChatID}},
		cancelRow(),
	}
}

func adminMenuKeyboard() [][]Action {
	return [][]Action{
		{{Label: "Stats", Name: actionAdminStats}, {Label: "Roster", Name: actionAdminRoster}},
		{{Label: "Add responder", Name: actionAdminAdd}, {Label: "Edit responder", Name: actionAdminEdit}},
	}
}

func acceptRejectRows(reqID string) [][]Action {
	return [][]Action{{
		{Label: "Accept", Name: actionAccept, Ref: reqID},
		{Label: "Reject", Name: actionReject, Ref: reqID},
	}}
}

func respondRow(reqID string) [][]Action {
	return [][]Action{{{Label: "Respond", Name: actionRespond, Ref: reqID}}}
}

func continueFinishRows(reqID string) [][]Action {
	return [][]Action{{
		{Label: "Continue", Name: actionContinue, Ref: reqID},
		{Label: "Finish", Name: actionFinish, Ref: reqID},
	}}
}

func replyFinishRows(reqID string) [][]Action {
	return [][]Action{{
		{Label: "Reply", Name: actionReply, Ref: reqID},
		{Label: "Finish", Name: actionFinish, Ref: reqID},
	}}
}

func cancelRequestRows(reqID string) [][]Action {
	return [][]Action{{{Label: "Cancel request", Name: actionCancelReq, Ref: reqID}}}
}

// reasonKeyboard indexes into the configured reason list so the
// callback payload stays short regardless of reason length.
func reasonKeyboard(reqID string, reasons []string) [][]Action {
	rows := make([][]Action, 0, len(reasons))
	for i, reason := range reasons {
		rows = append(rows, []Action{{
			Label: reason,
			Name:  actionReason,
			Ref:   reqID + "|" + strconv.Itoa(i),
		}})
	}
	return rows
}

// splitReasonRef undoes reasonKeyboard's ref encoding. Request ids
// never contain '|', so splitting on the last separator is safe.
func splitReasonRef(ref string) (reqID string, idx int, ok bool) {
	cut := strings.LastIndex(ref, "|")
	if cut < 0 {
		return "", 0, false
	}
	idx, err := strconv.Atoi(ref[cut+1:])
	if err != nil {
		return "", 0, false
	}
	return ref[:cut], idx, true
}

func submissionText(req *models.Request, responderName string) string {
	return fmt.Sprintf("Your request %s was sent to %s (%s). You will be notified when it is reviewed.",
		req.ID, responderName, req.Unit)
}

func newRequestText(req *models.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New request %s\n", req.ID)
	fmt.Fprintf(&b, "From: %s\n", req.RequesterName)
	fmt.Fprintf(&b, "Phone: %s\n", req.RequesterPhone)
	fmt.Fprintf(&b, "Unit: %s\n\n", req.Unit)
	b.WriteString(req.Body)
	return b.String()
}

func acceptedText(responderName string) string {
	return fmt.Sprintf("Your request was accepted by %s. You will receive their response here.", responderName)
}

func rejectedText(reason string) string {
	return fmt.Sprintf("Your request was rejected.\nReason: %s", reason)
}

func cancelledText(reqID string) string {
	return fmt.Sprintf("Request %s was cancelled by the requester.", reqID)
}

func finishedText(reqID string) string {
	return fmt.Sprintf("Request %s was closed. Thank you.", reqID)
}

func relayToRequesterText(responderName, text string) string {
	return fmt.Sprintf("Response from %s:\n\n%s", responderName, text)
}

func relayToResponderText(req *models.Request, text string) string {
	return fmt.Sprintf("Reply from %s on %s:\n\n%s", req.RequesterName, req.ID, text)
}

func requestDetailText(req *models.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request %s [%s]\n", req.ID, statusLabel(req.Status))
	fmt.Fprintf(&b, "From: %s\n", req.RequesterName)
	fmt.Fprintf(&b, "Phone: %s\n", req.RequesterPhone)
	fmt.Fprintf(&b, "Unit: %s\n\n", req.Unit)
	b.WriteString(req.Body)
	if req.RejectReason != "" {
		fmt.Fprintf(&b, "\n\nRejection reason: %s", req.RejectReason)
	}
	for _, m := range req.Thread {
		who := req.RequesterName
		if m.Sender == models.SenderResponder {
			who = "you"
		}
		fmt.Fprintf(&b, "\n\n%s: %s", who, m.Text)
	}
	return b.String()
}

// requestDetailRows returns the affordances valid for the request's
// current status. Terminal requests get none.
func requestDetailRows(req *models.Request) [][]Action {
	switch req.Status {
	case models.StatusPending:
		return acceptRejectRows(req.ID)
	case models.StatusAccepted:
		return continueFinishRows(req.ID)
	}
	return nil
}

func responderPanelText(reqs []models.Request) string {
	if len(reqs) == 0 {
		return msgNoRequests
	}
	var b strings.Builder
	b.WriteString("Your requests:")
	for _, r := range reqs {
		fmt.Fprintf(&b, "\n%s [%s] %s", r.ID, statusLabel(r.Status), r.RequesterName)
	}
	return b.String()
}

func responderPanelRows(reqs []models.Request) [][]Action {
	var rows [][]Action
	for _, r := range reqs {
		if r.Terminal() {
			continue
		}
		rows = append(rows, []Action{{
			Label: fmt.Sprintf("%s [%s]", r.ID, statusLabel(r.Status)),
			Name:  actionView,
			Ref:   r.ID,
		}})
	}
	return rows
}

func statsText(byUnit map[string]registry.StatusCounts) string {
	if len(byUnit) == 0 {
		return "No requests recorded yet."
	}
	units := make([]string, 0, len(byUnit))
	var total registry.StatusCounts
	for unit, c := range byUnit {
		units = append(units, unit)
		total.Total += c.Total
		total.Pending += c.Pending
		total.Accepted += c.Accepted
		total.Rejected += c.Rejected
		total.Cancelled += c.Cancelled
		total.Finished += c.Finished
	}
	sort.Strings(units)

	var b strings.Builder
	fmt.Fprintf(&b, "Request counts (%d total)\n", total.Total)
	writeCounts(&b, "", total)
	for _, unit := range units {
		fmt.Fprintf(&b, "\n\n%s:", unit)
		writeCounts(&b, "  ", byUnit[unit])
	}
	return b.String()
}

func writeCounts(b *strings.Builder, indent string, c registry.StatusCounts) {
	for _, e := range []struct {
		label string
		n     int64
	}{
		{"pending", c.Pending},
		{"in progress", c.Accepted},
		{"rejected", c.Rejected},
		{"cancelled", c.Cancelled},
		{"finished", c.Finished},
	} {
		if e.n > 0 {
			fmt.Fprintf(b, "\n%s%s: %d", indent, e.label, e.n)
		}
	}
}

func rosterText(dir *directory.Store) string {
	units := dir.Units()
	if len(units) == 0 {
		return "The roster is empty."
	}
	var b strings.Builder
	b.WriteString("Roster")
	for _, unit := range units {
		fmt.Fprintf(&b, "\n\n%s:", unit)
		for _, r := range dir.Responders(unit) {
			fmt.Fprintf(&b, "\n  %s (%d)", r.Name, r.ChatID)
		}
	}
	return b.String()
}
