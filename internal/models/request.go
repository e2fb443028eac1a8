package models

import "time"

// Request statuses. Transitions only move forward through the lifecycle
// graph; see registry.Transition for the allowed edges.
const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
	StatusFinished  = "finished"
)

// Thread message sender roles.
const (
	SenderRequester = "requester"
	SenderResponder = "responder"
)

// Request is the canonical record of a help request from submission to
// terminal resolution. Requests are never deleted.
type Request struct {
	ID             string `gorm:"primaryKey;size:64"`
	RequesterID    int64  `gorm:"not null;index"`
	RequesterName  string `gorm:"size:128"`
	RequesterPhone string `gorm:"size:32"`
	ResponderID    int64  `gorm:"not null;index"`
	Unit           string `gorm:"size:128;index"`
	Body           string `gorm:"type:text"`
	Status         string `gorm:"size:16;default:pending;index"`
	RejectReason   string `gorm:"size:256"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ClosedAt       *time.Time

	Thread []ThreadMessage `gorm:"foreignKey:RequestID"`
}

// Terminal reports whether the request has reached a terminal status.
func (r *Request) Terminal() bool {
	switch r.Status {
	case StatusRejected, StatusCancelled, StatusFinished:
		return true
	}
	return false
}

// ThreadMessage is one entry in a request's append-only conversation
// thread between requester and responder.
type ThreadMessage struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	RequestID string `gorm:"size:64;not null;index"`
	Sequence  int    `gorm:"not null"`
	Sender    string `gorm:"size:16;not null"` // "requester" or "responder"
	Text      string `gorm:"type:text"`
	CreatedAt time.Time
}

// RequesterProfile stores what is known about a requester identity.
// Created lazily on first inbound contact.
type RequesterProfile struct {
	ChatID    int64  `gorm:"primaryKey"`
	Name      string `gorm:"size:128"`
	Phone     string `gorm:"size:32"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
