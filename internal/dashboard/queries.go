package dashboard

import (
	"time"

	"gorm.io/gorm"

	"github.com/aloqahq/aloqa/internal/models"
)

// RequestRow holds request data for display. Phone numbers are left out
// of the listing on purpose.
type RequestRow struct {
	ID        string     `json:"id"`
	Unit      string     `json:"unit"`
	Status    string     `json:"status"`
	Requester string     `json:"requester"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// RequestSummary returns requests newest first, optionally filtered by
// status and unit.
func RequestSummary(db *gorm.DB, status, unit string) ([]RequestRow, error) {
	q := db.Model(&models.Request{}).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if unit != "" {
		q = q.Where("unit = ?", unit)
	}

	var reqs []models.Request
	if err := q.Find(&reqs).Error; err != nil {
		return nil, err
	}
	rows := make([]RequestRow, len(reqs))
	for i, r := range reqs {
		rows[i] = RequestRow{
			ID:        r.ID,
			Unit:      r.Unit,
			Status:    r.Status,
			Requester: r.RequesterName,
			CreatedAt: r.CreatedAt,
			ClosedAt:  r.ClosedAt,
		}
	}
	return rows, nil
}

// ThreadRow is one thread message for display.
type ThreadRow struct {
	Sequence  int       `json:"sequence"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// DetailRow is a single request with its conversation thread.
type DetailRow struct {
	RequestRow
	Body         string      `json:"body"`
	RejectReason string      `json:"reject_reason,omitempty"`
	Thread       []ThreadRow `json:"thread"`
}

// RequestDetail returns one request with its ordered thread.
func RequestDetail(db *gorm.DB, id string) (*DetailRow, error) {
	var req models.Request
	err := db.Preload("Thread", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("sequence ASC")
	}).First(&req, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	detail := &DetailRow{
		RequestRow: RequestRow{
			ID:        req.ID,
			Unit:      req.Unit,
			Status:    req.Status,
			Requester: req.RequesterName,
			CreatedAt: req.CreatedAt,
			ClosedAt:  req.ClosedAt,
		},
		Body:         req.Body,
		RejectReason: req.RejectReason,
	}
	for _, m := range req.Thread {
		detail.Thread = append(detail.Thread, ThreadRow{
			Sequence:  m.Sequence,
			Sender:    m.Sender,
			Text:      m.Text,
			CreatedAt: m.CreatedAt,
		})
	}
	return detail, nil
}
