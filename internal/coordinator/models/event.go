package models

import "time"

type WorkerEventKind string

const (
	EventRegistered   WorkerEventKind = "registered"
	EventReRegistered WorkerEventKind = "re_registered"
	EventTrimmed      WorkerEventKind = "services_trimmed"
	EventDegraded     WorkerEventKind = "degraded"
	EventRecovered    WorkerEventKind = "recovered"
	EventExpired      WorkerEventKind = "expired"
	EventRemoved      WorkerEventKind = "removed"
)

// WorkerEvent is one audit row of a worker's lifecycle. Events are
// append-only and survive the worker record itself.
type WorkerEvent struct {
	ID        int64           `json:"id,omitempty"`
	WorkerID  string          `json:"workerId"`
	Kind      WorkerEventKind `json:"kind"`
	Detail    string          `json:"detail,omitempty"`
	Tier      int             `json:"tier,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
