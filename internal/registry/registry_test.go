package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/aloqahq/aloqa/internal/fault"
	"github.com/aloqahq/aloqa/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubDirectory implements ResponderLookup for tests.
type stubDirectory map[string][]int64

func (d stubDirectory) HasResponder(unit string, chatID int64) bool {
	for _, id := range d[unit] {
		if id == chatID {
			return true
		}
	}
	return false
}

var testDir = stubDirectory{
	"Engineering": {42, 43},
	"Economics":   {77},
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Request{},
		&models.ThreadMessage{},
		&models.RequesterProfile{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func createTestRequest(t *testing.T, db *gorm.DB) *models.Request {
	t.Helper()
	req, err := Create(db, testDir, CreateOpts{
		RequesterID:    100,
		RequesterName:  "Aziz",
		RequesterPhone: "+998901234567",
		ResponderID:    42,
		Unit:           "Engineering",
		Body:           "Need help with enrollment",
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

func TestCreate(t *testing.T) {
	db := openTestDB(t)
	req := createTestRequest(t, db)

	if req.Status != models.StatusPending {
		t.Errorf("Status = %q, want pending", req.Status)
	}
	if req.Unit != "Engineering" || req.ResponderID != 42 {
		t.Errorf("request = %+v", req)
	}
	if !strings.HasPrefix(req.ID, "req_100_") {
		t.Errorf("ID = %q, want req_100_ prefix", req.ID)
	}
}

func TestCreate_UnknownResponder(t *testing.T) {
	db := openTestDB(t)

	tests := []struct {
		name      string
		unit      string
		responder int64
	}{
		{name: "unknown unit", unit: "Astronomy", responder: 42},
		{name: "responder not in unit", unit: "Economics", responder: 42},
		{name: "unknown responder", unit: "Engineering", responder: 9999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(db, testDir, CreateOpts{
				RequesterID: 100,
				ResponderID: tt.responder,
				Unit:        tt.unit,
				Body:        "help",
			})
			if !errors.Is(err, fault.ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestCreate_EmptyBody(t *testing.T) {
	db := openTestDB(t)
	_, err := Create(db, testDir, CreateOpts{RequesterID: 100, ResponderID: 42, Unit: "Engineering"})
	if !errors.Is(err, fault.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestNewRequestID_UniqueWithinMillisecond(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := newRequestID(100)
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestAccept(t *testing.T) {
	db := openTestDB(t)
	req := createTestRequest(t, db)

	got, err := Accept(db, req.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != models.StatusAccepted {
		t.Errorf("Status = %q, want accepted", got.Status)
	}
	if got.ClosedAt != nil {
		t.Error("ClosedAt set on non-terminal status")
	}
}

func TestReject_RecordsReason(t *testing.T) {
	db := openTestDB(t)
	req := createTestRequest(t, db)

	got, err := Reject(db, req.ID, "Out of office this week")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != models.StatusRejected {
		t.Errorf("Status = %q, want rejected", got.Status)
	}
	if got.RejectReason != "Out of office this week" {
		t.Errorf("RejectReason = %q", got.RejectReason)
	}
	if got.ClosedAt == nil {
		t.Error("ClosedAt not set on terminal status")
	}
}

func TestReject_Twice(t *testing.T) {
	db := openTestDB(t)
	req := createTestRequest(t, db)

	if _, err := Reject(db, req.ID, "busy"); err != nil {
		t.Fatalf("first reject: %v", err)
	}
	_, err := Reject(db, req.ID, "busy")
	if !errors.Is(err, fault.ErrInvalidTransition) {
		t.Errorf("second reject: err = %v, want ErrInvalidTransition", err)
	}

	got, _ := Get(db, req.ID)
	if got.Status != models.StatusRejected {
		t.Errorf("Status = %q, want rejected after double reject", got.Status)
	}
}

func TestCancel_OnlyWhilePending(t *testing.T) {
	db := openTestDB(t)

	t.Run("pending cancels", func(t *testing.T) {
		req := createTestRequest(t, db)
		got, err := Cancel(db, req.ID)
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if got.Status != models.StatusCancelled {
			t.Errorf("Status = %q, want cancelled", got.Status)
		}
	})

	t.Run("accepted refuses cancel", func(t *testing.T) {
		req := createTestRequest(t, db)
		if _, err := Accept(db, req.ID); err != nil {
			t.Fatalf("accept: %v", err)
		}
		_, err := Cancel(db, req.ID)
		if !errors.Is(err, fault.ErrInvalidTransition) {
			t.Errorf("err = %v, want ErrInvalidTransition", err)
		}
		got, _ := Get(db, req.ID)
		if got.Status != models.StatusAccepted {
			t.Errorf("Status = %q, refused cancel must not mutate", got.Status)
		}
	})
}

func TestFinish(t *testing.T) {
	db := openTestDB(t)
	req := createTestRequest(t, db)

	// Cannot finish while pending.
	if _, err := Finish(db, req.ID); !errors.Is(err, fault.ErrInvalidTransition) {
		t.Errorf("finish pending: err = %v, want ErrInvalidTransition", err)
	}

	if _, err := Accept(db, req.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	got, err := Finish(db, req.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if got.Status != models.StatusFinished {
		t.Errorf("Status = %q, want finished", got.Status)
	}

	// Idempotent refusal: the second finish is refused.
	if _, err := Finish(db, req.ID); !errors.Is(err, fault.ErrInvalidTransition) {
		t.Errorf("second finish: err = %v, want ErrInvalidTransition", err)
	}
}

func TestTransition_NotFound(t *testing.T) {
	db := openTestDB(t)
	for name, fn := range map[string]func() error{
		"accept": func() error { _, err := Accept(db, "req_missing"); return err },
		"cancel": func() error { _, err := Cancel(db, "req_missing"); return err },
		"finish": func() error { _, err := Finish(db, "req_missing"); return err },
		"reject": func() error { _, err := Reject(db, "req_missing", "x"); return err },
	} {
		if err := fn(); !errors.Is(err, fault.ErrNotFound) {
			t.Errorf("%s: err = %v, want ErrNotFound", name, err)
		}
	}
}

func TestStatusMonotonic(t *testing.T) {
	// Every path out of a terminal status is refused; statuses only walk
	// forward through the lifecycle graph.
	db := openTestDB(t)

	terminalReqs := map[string]string{}
	for _, setup := range []struct {
		terminal string
		arrange  func(id string)
	}{
		{terminal: models.StatusRejected, arrange: func(id string) { Reject(db, id, "r") }},
		{terminal: models.StatusCancelled, arrange: func(id string) { Cancel(db, id) }},
		{terminal: models.StatusFinished, arrange: func(id string) { Accept(db, id); Finish(db, id) }},
	} {
		req := createTestRequest(t, db)
		setup.arrange(req.ID)
		terminalReqs[setup.terminal] = req.ID
	}

	for terminal, id := range terminalReqs {
		for action, fn := range map[string]func(string) error{
			"accept": func(id string) error { _, err := Accept(db, id); return err },
			"reject": func(id string) error { _, err := Reject(db, id, "r"); return err },
			"cancel": func(id string) error { _, err := Cancel(db, id); return err },
			"finish": func(id string) error { _, err := Finish(db, id); return err },
			"append": func(id string) error { _, err := AppendMessage(db, id, models.SenderRequester, "hi"); return err },
		} {
			if err := fn(id); !errors.Is(err, fault.ErrInvalidTransition) {
				t.Errorf("%s on %s request: err = %v, want ErrInvalidTransition", action, terminal, err)
			}
			got, _ := Get(db, id)
			if got.Status != terminal {
				t.Errorf("%s on %s request mutated status to %s", action, terminal, got.Status)
			}
		}
	}
}

func TestAppendMessage(t *testing.T) {
	db := openTestDB(t)
	req := createTestRequest(t, db)

	// Thread is closed while pending.
	if _, err := AppendMessage(db, req.ID, models.SenderResponder, "hello"); !errors.Is(err, fault.ErrInvalidTransition) {
		t.Errorf("append while pending: err = %v, want ErrInvalidTransition", err)
	}

	if _, err := Accept(db, req.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	for i, m := range []struct{ sender, text string }{
		{models.SenderResponder, "How can I help?"},
		{models.SenderRequester, "My enrollment is stuck"},
		{models.SenderResponder, "Forwarded to the registrar"},
	} {
		if _, err := AppendMessage(db, req.ID, m.sender, m.text); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := Get(db, req.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Thread) != 3 {
		t.Fatalf("len(Thread) = %d, want 3", len(got.Thread))
	}
	// Append-only ordering is preserved.
	for i, want := range []string{"How can I help?", "My enrollment is stuck", "Forwarded to the registrar"} {
		if got.Thread[i].Text != want {
			t.Errorf("Thread[%d].Text = %q, want %q", i, got.Thread[i].Text, want)
		}
		if got.Thread[i].Sequence != i+1 {
			t.Errorf("Thread[%d].Sequence = %d, want %d", i, got.Thread[i].Sequence, i+1)
		}
	}
	// Appending did not change status.
	if got.Status != models.StatusAccepted {
		t.Errorf("Status = %q, append must not change status", got.Status)
	}
}

func TestAppendMessage_BadInput(t *testing.T) {
	db := openTestDB(t)
	req := createTestRequest(t, db)
	Accept(db, req.ID)

	if _, err := AppendMessage(db, req.ID, "bystander", "hi"); !errors.Is(err, fault.ErrInvalidInput) {
		t.Errorf("unknown sender: err = %v, want ErrInvalidInput", err)
	}
	if _, err := AppendMessage(db, req.ID, models.SenderRequester, ""); !errors.Is(err, fault.ErrInvalidInput) {
		t.Errorf("empty text: err = %v, want ErrInvalidInput", err)
	}
}

func TestListByResponder(t *testing.T) {
	db := openTestDB(t)
	createTestRequest(t, db)
	createTestRequest(t, db)

	other, err := Create(db, testDir, CreateOpts{
		RequesterID: 200, ResponderID: 77, Unit: "Economics", Body: "tax question",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	reqs, err := ListByResponder(db, 42)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("len = %d, want 2", len(reqs))
	}
	for _, r := range reqs {
		if r.ResponderID != 42 {
			t.Errorf("foreign request %s in listing", r.ID)
		}
	}

	reqs, err = ListByResponder(db, 77)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reqs) != 1 || reqs[0].ID != other.ID {
		t.Errorf("responder 77 listing = %+v", reqs)
	}
}

func TestStatsByUnit(t *testing.T) {
	db := openTestDB(t)

	a := createTestRequest(t, db)
	b := createTestRequest(t, db)
	createTestRequest(t, db) // stays pending
	Accept(db, a.ID)
	Reject(db, b.ID, "busy")

	if _, err := Create(db, testDir, CreateOpts{
		RequesterID: 200, ResponderID: 77, Unit: "Economics", Body: "q",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	stats, err := StatsByUnit(db)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}

	eng := stats["Engineering"]
	if eng.Total != 3 || eng.Pending != 1 || eng.Accepted != 1 || eng.Rejected != 1 {
		t.Errorf("Engineering stats = %+v", eng)
	}
	eco := stats["Economics"]
	if eco.Total != 1 || eco.Pending != 1 {
		t.Errorf("Economics stats = %+v", eco)
	}
}

func TestProfile_Upsert(t *testing.T) {
	db := openTestDB(t)

	if _, err := Profile(db, 100); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("missing profile: err = %v, want ErrNotFound", err)
	}

	if err := UpsertProfile(db, 100, "Aziz", ""); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := UpsertProfile(db, 100, "", "+998901234567"); err != nil {
		t.Fatalf("upsert phone: %v", err)
	}

	prof, err := Profile(db, 100)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if prof.Name != "Aziz" {
		t.Errorf("Name = %q, empty update must not clear it", prof.Name)
	}
	if prof.Phone != "+998901234567" {
		t.Errorf("Phone = %q", prof.Phone)
	}
}
