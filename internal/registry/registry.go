// Package registry owns the canonical request records and enforces the
// request lifecycle:
//
//	pending → accepted | rejected | cancelled
//	accepted → finished
//
// rejected, cancelled, and finished are terminal. A status never reverts,
// and a request's thread is append-only. All transition checks run inside
// a transaction so the guard and the write observe the same row.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/aloqahq/aloqa/internal/fault"
	"github.com/aloqahq/aloqa/internal/models"
	"gorm.io/gorm"
)

// ResponderLookup is the slice of the directory store the registry needs
// to validate responder references at creation time.
type ResponderLookup interface {
	HasResponder(unit string, chatID int64) bool
}

// CreateOpts holds the fields of a new request.
type CreateOpts struct {
	RequesterID    int64
	RequesterName  string
	RequesterPhone string
	ResponderID    int64
	Unit           string
	Body           string
}

// Create stores a new pending request. The responder reference must
// resolve in the directory.
func Create(db *gorm.DB, dir ResponderLookup, opts CreateOpts) (*models.Request, error) {
	if opts.RequesterID == 0 {
		return nil, fmt.Errorf("registry: requester id is required: %w", fault.ErrInvalidInput)
	}
	if opts.Body == "" {
		return nil, fmt.Errorf("registry: request body is required: %w", fault.ErrInvalidInput)
	}
	if !dir.HasResponder(opts.Unit, opts.ResponderID) {
		return nil, fmt.Errorf("registry: responder %d in unit %q: %w",
			opts.ResponderID, opts.Unit, fault.ErrNotFound)
	}

	req := models.Request{
		ID:             newRequestID(opts.RequesterID),
		RequesterID:    opts.RequesterID,
		RequesterName:  opts.RequesterName,
		RequesterPhone: opts.RequesterPhone,
		ResponderID:    opts.ResponderID,
		Unit:           opts.Unit,
		Body:           opts.Body,
		Status:         models.StatusPending,
	}
	if err := db.Create(&req).Error; err != nil {
		return nil, fmt.Errorf("registry: create: %w", err)
	}
	return &req, nil
}

// idMu guards request id generation. Ids derive from the requester
// identity and the creation time in milliseconds; a per-process sequence
// breaks ties when two requests land in the same millisecond.
var (
	idMu     sync.Mutex
	idLastMS int64
	idSeq    int
)

func newRequestID(requesterID int64) string {
	idMu.Lock()
	defer idMu.Unlock()

	ms := time.Now().UnixMilli()
	if ms == idLastMS {
		idSeq++
		return fmt.Sprintf("req_%d_%d_%d", requesterID, ms, idSeq)
	}
	idLastMS = ms
	idSeq = 0
	return fmt.Sprintf("req_%d_%d", requesterID, ms)
}

// Get returns a request with its thread, ordered by sequence.
func Get(db *gorm.DB, id string) (*models.Request, error) {
	var req models.Request
	err := db.Preload("Thread", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("sequence ASC")
	}).First(&req, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("registry: request %s: %w", id, fault.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: get %s: %w", id, err)
	}
	return &req, nil
}

// Accept moves a pending request to accepted. Only valid from pending.
func Accept(db *gorm.DB, id string) (*models.Request, error) {
	return transition(db, id, models.StatusAccepted, nil, models.StatusPending)
}

// Reject moves a pending request to rejected, recording the chosen
// reason. Only valid from pending; a second reject yields an invalid
// transition, not a duplicate notification.
func Reject(db *gorm.DB, id, reason string) (*models.Request, error) {
	set := func(req *models.Request) { req.RejectReason = reason }
	return transition(db, id, models.StatusRejected, set, models.StatusPending)
}

// Cancel moves a pending request to cancelled. Only the pending status
// can be cancelled; cancelling anything else is an invalid operation,
// not a state change.
func Cancel(db *gorm.DB, id string) (*models.Request, error) {
	return transition(db, id, models.StatusCancelled, nil, models.StatusPending)
}

// Finish moves an accepted request to finished.
func Finish(db *gorm.DB, id string) (*models.Request, error) {
	return transition(db, id, models.StatusFinished, nil, models.StatusAccepted)
}

// transition applies a guarded status change. The request must currently
// be in one of the allowed from-statuses.
func transition(db *gorm.DB, id, to string, set func(*models.Request), from ...string) (*models.Request, error) {
	var req models.Request
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&req, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("request %s: %w", id, fault.ErrNotFound)
			}
			return fmt.Errorf("load %s: %w", id, err)
		}
		if !statusIn(req.Status, from) {
			return fmt.Errorf("request %s is %s, cannot move to %s: %w",
				id, req.Status, to, fault.ErrInvalidTransition)
		}

		req.Status = to
		if set != nil {
			set(&req)
		}
		now := time.Now()
		if req.Terminal() {
			req.ClosedAt = &now
		}
		if err := tx.Save(&req).Error; err != nil {
			return fmt.Errorf("save %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	return &req, nil
}

func statusIn(status string, set []string) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

// AppendMessage appends a thread message to an accepted request. The
// conversational reply loop only exists while the request is accepted;
// any other status refuses the append.
func AppendMessage(db *gorm.DB, id, sender, text string) (*models.Request, error) {
	if sender != models.SenderRequester && sender != models.SenderResponder {
		return nil, fmt.Errorf("registry: unknown sender %q: %w", sender, fault.ErrInvalidInput)
	}
	if text == "" {
		return nil, fmt.Errorf("registry: empty message: %w", fault.ErrInvalidInput)
	}

	var req models.Request
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&req, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("request %s: %w", id, fault.ErrNotFound)
			}
			return fmt.Errorf("load %s: %w", id, err)
		}
		if req.Status != models.StatusAccepted {
			return fmt.Errorf("request %s is %s, thread is closed: %w",
				id, req.Status, fault.ErrInvalidTransition)
		}

		var maxSeq int
		tx.Model(&models.ThreadMessage{}).
			Where("request_id = ?", id).
			Select("COALESCE(MAX(sequence), 0)").Scan(&maxSeq)

		msg := models.ThreadMessage{
			RequestID: id,
			Sequence:  maxSeq + 1,
			Sender:    sender,
			Text:      text,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("append to %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	return &req, nil
}

// ListByResponder returns all requests assigned to a responder, oldest
// first.
func ListByResponder(db *gorm.DB, responderID int64) ([]models.Request, error) {
	var reqs []models.Request
	if err := db.Where("responder_id = ?", responderID).
		Order("created_at ASC").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("registry: list for responder %d: %w", responderID, err)
	}
	return reqs, nil
}

// ListByRequester returns all requests created by a requester, oldest
// first.
func ListByRequester(db *gorm.DB, requesterID int64) ([]models.Request, error) {
	var reqs []models.Request
	if err := db.Where("requester_id = ?", requesterID).
		Order("created_at ASC").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("registry: list for requester %d: %w", requesterID, err)
	}
	return reqs, nil
}

// StatusCounts aggregates request counts by status for one unit.
type StatusCounts struct {
	Total     int64
	Pending   int64
	Accepted  int64
	Rejected  int64
	Cancelled int64
	Finished  int64
}

// StatsByUnit returns per-unit request counts grouped by status.
func StatsByUnit(db *gorm.DB) (map[string]StatusCounts, error) {
	type row struct {
		Unit   string
		Status string
		N      int64
	}
	var rows []row
	if err := db.Model(&models.Request{}).
		Select("unit, status, COUNT(*) AS n").
		Group("unit").Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("registry: stats: %w", err)
	}

	stats := make(map[string]StatusCounts)
	for _, r := range rows {
		c := stats[r.Unit]
		c.Total += r.N
		switch r.Status {
		case models.StatusPending:
			c.Pending += r.N
		case models.StatusAccepted:
			c.Accepted += r.N
		case models.StatusRejected:
			c.Rejected += r.N
		case models.StatusCancelled:
			c.Cancelled += r.N
		case models.StatusFinished:
			c.Finished += r.N
		}
		stats[r.Unit] = c
	}
	return stats, nil
}

// UpsertProfile creates or refreshes a requester profile. Called lazily
// on first inbound contact and whenever the requester re-enters their
// details.
func UpsertProfile(db *gorm.DB, chatID int64, name, phone string) error {
	var prof models.RequesterProfile
	err := db.First(&prof, "chat_id = ?", chatID).Error
	if err == gorm.ErrRecordNotFound {
		prof = models.RequesterProfile{ChatID: chatID, Name: name, Phone: phone}
		if err := db.Create(&prof).Error; err != nil {
			return fmt.Errorf("registry: create profile %d: %w", chatID, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("registry: load profile %d: %w", chatID, err)
	}

	if name != "" {
		prof.Name = name
	}
	if phone != "" {
		prof.Phone = phone
	}
	if err := db.Save(&prof).Error; err != nil {
		return fmt.Errorf("registry: update profile %d: %w", chatID, err)
	}
	return nil
}

// Profile returns the stored requester profile, if any.
func Profile(db *gorm.DB, chatID int64) (*models.RequesterProfile, error) {
	var prof models.RequesterProfile
	err := db.First(&prof, "chat_id = ?", chatID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("registry: profile %d: %w", chatID, fault.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: profile %d: %w", chatID, err)
	}
	return &prof, nil
}
