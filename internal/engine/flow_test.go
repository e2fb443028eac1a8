package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/aloqahq/aloqa/internal/models"
	"github.com/aloqahq/aloqa/internal/registry"
)

func TestAcceptFlow(t *testing.T) {
	r, adapter := newTestRouter(t)
	ctx := context.Background()
	req := seedRequest(t, r)

	r.HandleEvent(ctx, actionEvent(testResponder, actionAccept, req.ID))

	got, err := registry.Get(r.db, req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.StatusAccepted {
		t.Fatalf("Status = %q, want accepted", got.Status)
	}
	// The requester learns who accepted, by directory name.
	if msg := lastMsgTo(t, adapter, testRequester); !strings.Contains(msg.Text, "Aziz") {
		t.Errorf("acceptance notice = %q, want responder name", msg.Text)
	}
}

func TestRespondAndReplyLoop(t *testing.T) {
	r, adapter := newTestRouter(t)
	ctx := context.Background()
	req := seedRequest(t, r)
	r.HandleEvent(ctx, actionEvent(testResponder, actionAccept, req.ID))

	// Responder sends a response.
	r.HandleEvent(ctx, actionEvent(testResponder, actionRespond, req.ID))
	if got := lastMsgTo(t, adapter, testResponder).Text; got != msgAskResponse {
		t.Fatalf("respond prompt = %q", got)
	}
	r.HandleEvent(ctx, textEvent(testResponder, "Come by office 214 tomorrow"))

	rmsg := lastMsgTo(t, adapter, testRequester)
	if !strings.Contains(rmsg.Text, "Come by office 214 tomorrow") {
		t.Fatalf("requester relay = %q", rmsg.Text)
	}
	if len(rmsg.Actions) != 1 || len(rmsg.Actions[0]) != 2 {
		t.Fatalf("requester affordances = %v, want reply/finish row", rmsg.Actions)
	}

	// Requester replies.
	r.HandleEvent(ctx, actionEvent(testRequester, actionReply, req.ID))
	r.HandleEvent(ctx, textEvent(testRequester, "What time works?"))
	if msg := lastMsgTo(t, adapter, testResponder); !strings.Contains(msg.Text, "What time works?") {
		t.Errorf("responder relay = %q", msg.Text)
	}

	// The thread holds both messages in order.
	got, err := registry.Get(r.db, req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Thread) != 2 {
		t.Fatalf("len(Thread) = %d, want 2", len(got.Thread))
	}
	if got.Thread[0].Sender != models.SenderResponder || got.Thread[1].Sender != models.SenderRequester {
		t.Errorf("thread senders = %q, %q", got.Thread[0].Sender, got.Thread[1].Sender)
	}
}

func TestFinish_EitherParty(t *testing.T) {
	for _, tt := range []struct {
		name  string
		actor int64
		other int64
	}{
		{"by responder", testResponder, testRequester},
		{"by requester", testRequester, testResponder},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r, adapter := newTestRouter(t)
			ctx := context.Background()
			req := seedRequest(t, r)
			r.HandleEvent(ctx, actionEvent(testResponder, actionAccept, req.ID))

			r.HandleEvent(ctx, actionEvent(tt.actor, actionFinish, req.ID))

			got, _ := registry.Get(r.db, req.ID)
			if got.Status != models.StatusFinished {
				t.Fatalf("Status = %q, want finished", got.Status)
			}
			if msg := lastMsgTo(t, adapter, tt.other); !strings.Contains(msg.Text, req.ID) {
				t.Errorf("other party notice = %q", msg.Text)
			}
		})
	}
}

func TestRejectionFlow(t *testing.T) {
	r, adapter := newTestRouter(t)
	ctx := context.Background()
	req := seedRequest(t, r)

	// Opening the picker does not change the request.
	r.HandleEvent(ctx, actionEvent(testResponder, actionReject, req.ID))
	msg := lastMsgTo(t, adapter, testResponder)
	if msg.Text != msgPickReason || len(msg.Actions) != len(testReasons) {
		t.Fatalf("reason picker = %+v", msg)
	}
	if got, _ := registry.Get(r.db, req.ID); got.Status != models.StatusPending {
		t.Fatalf("Status after picker = %q, want pending", got.Status)
	}

	r.HandleEvent(ctx, actionEvent(testResponder, actionReason, req.ID+"|1"))

	got, _ := registry.Get(r.db, req.ID)
	if got.Status != models.StatusRejected || got.RejectReason != testReasons[1] {
		t.Fatalf("after reject: status %q, reason %q", got.Status, got.RejectReason)
	}
	if msg := lastMsgTo(t, adapter, testRequester); !strings.Contains(msg.Text, testReasons[1]) {
		t.Errorf("requester rejection notice = %q", msg.Text)
	}
}

// A second press of the same reason button must refuse without mutating
// or re-notifying the requester.
func TestRejection_SecondPressRefused(t *testing.T) {
	r, adapter := newTestRouter(t)
	ctx := context.Background()
	req := seedRequest(t, r)

	r.HandleEvent(ctx, actionEvent(testResponder, actionReason, req.ID+"|0"))
	before := len(adapter.SentTo(testRequester))

	r.HandleEvent(ctx, actionEvent(testResponder, actionReason, req.ID+"|1"))

	got, _ := registry.Get(r.db, req.ID)
	if got.RejectReason != testReasons[0] {
		t.Errorf("reason changed on second press: %q", got.RejectReason)
	}
	if msg := lastMsgTo(t, adapter, testResponder); msg.Text != msgAlreadyClosed {
		t.Errorf("second press answer = %q, want refusal", msg.Text)
	}
	if after := len(adapter.SentTo(testRequester)); after != before {
		t.Errorf("requester notified again: %d -> %d messages", before, after)
	}
}

func TestRejection_BadReasonRef(t *testing.T) {
	r, adapter := newTestRouter(t)
	ctx := context.Background()
	req := seedRequest(t, r)

	for _, ref := range []string{req.ID + "|9", req.ID + "|x", "no-separator"} {
		r.HandleEvent(ctx, actionEvent(testResponder, actionReason, ref))
		if msg := lastMsgTo(t, adapter, testResponder); msg.Text != msgStaleAction {
			t.Errorf("ref %q answer = %q, want %q", ref, msg.Text, msgStaleAction)
		}
	}
	if got, _ := registry.Get(r.db, req.ID); got.Status != models.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
}

func TestCancelFlow(t *testing.T) {
	r, adapter := newTestRouter(t)
	ctx := context.Background()
	req := seedRequest(t, r)

	r.HandleEvent(ctx, actionEvent(testRequester, actionCancelReq, req.ID))

	got, _ := registry.Get(r.db, req.ID)
	if got.Status != models.StatusCancelled {
		t.Fatalf("Status = %q, want cancelled", got.Status)
	}
	if msg := lastMsgTo(t, adapter, testResponder); !strings.Contains(msg.Text, "cancelled") {
		t.Errorf("responder notice = %q", msg.Text)
	}
}

// Cancel arriving after the responder accepted must refuse and stay
// quiet toward the responder.
func TestCancel_AfterAcceptRefused(t *testing.T) {
	r, adapter := newTestRouter(t)
	ctx := context.Background()
	req := seedRequest(t, r)
	r.HandleEvent(ctx, actionEvent(testResponder, actionAccept, req.ID))
	before := len(adapter.SentTo(testResponder))

	r.HandleEvent(ctx, actionEvent(testRequester, actionCancelReq, req.ID))

	got, _ := registry.Get(r.db, req.ID)
	if got.Status != models.StatusAccepted {
		t.Fatalf("Status = %q, want accepted", got.Status)
	}
	if msg := lastMsgTo(t, adapter, testRequester); msg.Text != msgAlreadyClosed {
		t.Errorf("requester refusal = %q", msg.Text)
	}
	if after := len(adapter.SentTo(testResponder)); after != before {
		t.Errorf("responder notified on refused cancel")
	}
}

// Actions on a request by identities that are not a party to it read as
// not found, whatever their role.
func TestActorGuards(t *testing.T) {
	r, adapter := newTestRouter(t)
	ctx := context.Background()
	req := seedRequest(t, r)

	// A different responder cannot accept.
	r.HandleEvent(ctx, actionEvent(testOther, actionAccept, req.ID))
	if msg := lastMsgTo(t, adapter, testOther); msg.Text != msgNotFound {
		t.Errorf("foreign accept = %q, want %q", msg.Text, msgNotFound)
	}
	if got, _ := registry.Get(r.db, req.ID); got.Status != models.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}

	// A different requester cannot cancel.
	r.HandleEvent(ctx, actionEvent(200, actionCancelReq, req.ID))
	if msg := lastMsgTo(t, adapter, 200); msg.Text != msgNotFound {
		t.Errorf("foreign cancel = %q, want %q", msg.Text, msgNotFound)
	}

	// Nor finish a request they are no party to.
	r.HandleEvent(ctx, actionEvent(testResponder, actionAccept, req.ID))
	r.HandleEvent(ctx, actionEvent(testOther, actionFinish, req.ID))
	if got, _ := registry.Get(r.db, req.ID); got.Status != models.StatusAccepted {
		t.Errorf("Status = %q, want accepted", got.Status)
	}
}

func TestView_AffordancesFollowStatus(t *testing.T) {
	r, adapter := newTestRouter(t)
	ctx := context.Background()
	req := seedRequest(t, r)

	r.HandleEvent(ctx, actionEvent(testResponder, actionView, req.ID))
	if msg := lastMsgTo(t, adapter, testResponder); len(msg.Actions) != 1 || len(msg.Actions[0]) != 2 {
		t.Errorf("pending view actions = %v, want accept/reject", msg.Actions)
	}

	r.HandleEvent(ctx, actionEvent(testResponder, actionAccept, req.ID))
	r.HandleEvent(ctx, actionEvent(testResponder, actionView, req.ID))
	if msg := lastMsgTo(t, adapter, testResponder); len(msg.Actions) != 1 || len(msg.Actions[0]) != 2 {
		t.Errorf("accepted view actions = %v, want continue/finish", msg.Actions)
	}

	r.HandleEvent(ctx, actionEvent(testResponder, actionFinish, req.ID))
	r.HandleEvent(ctx, actionEvent(testResponder, actionView, req.ID))
	if msg := lastMsgTo(t, adapter, testResponder); len(msg.Actions) != 0 {
		t.Errorf("finished view actions = %v, want none", msg.Actions)
	}
}

func TestReply_AfterTerminalRefused(t *testing.T) {
	r, adapter := newTestRouter(t)
	ctx := context.Background()
	req := seedRequest(t, r)
	r.HandleEvent(ctx, actionEvent(testResponder, actionReason, req.ID+"|0"))

	r.HandleEvent(ctx, actionEvent(testRequester, actionReply, req.ID))
	if msg := lastMsgTo(t, adapter, testRequester); msg.Text != msgAlreadyClosed {
		t.Errorf("reply on rejected = %q, want refusal", msg.Text)
	}
	if _, _, ok := r.sessions.Get(testRequester); ok {
		t.Error("reply session opened on a closed request")
	}
}

func TestUnknownRequestRef(t *testing.T) {
	r, adapter := newTestRouter(t)
	ctx := context.Background()

	r.HandleEvent(ctx, actionEvent(testResponder, actionAccept, "req_1_999"))
	if msg := lastMsgTo(t, adapter, testResponder); msg.Text != msgNotFound {
		t.Errorf("unknown ref answer = %q, want %q", msg.Text, msgNotFound)
	}
}

func TestResponderPanel_ListsAssigned(t *testing.T) {
	r, adapter := newTestRouter(t)
	ctx := context.Background()
	req := seedRequest(t, r)
	second := seedRequest(t, r)
	r.HandleEvent(ctx, actionEvent(testResponder, actionReason, second.ID+"|0"))

	r.HandleEvent(ctx, textEvent(testResponder, "/start"))
	msg := lastMsgTo(t, adapter, testResponder)
	if !strings.Contains(msg.Text, req.ID) || !strings.Contains(msg.Text, second.ID) {
		t.Errorf("panel text missing requests:\n%s", msg.Text)
	}
	// Only the live request keeps a view button.
	if len(msg.Actions) != 1 || msg.Actions[0][0].Ref != req.ID {
		t.Errorf("panel actions = %v, want one view row for %s", msg.Actions, req.ID)
	}
}
