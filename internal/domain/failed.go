package domain

import "time"

// FailureStatus represents the review state of a failed transaction record.
type FailureStatus string

const (
	FailurePendingReview FailureStatus = "pending_review"
	FailureResolved      FailureStatus = "resolved"
)

// RawSchemaVersion tags the serialized raw-input snapshot so future replays
// of audited failures remain decodable.
const RawSchemaVersion = 1

// FailedTransaction is an append-only audit record written when a
// ledger-mutating attempt aborts after validation passed. RawData holds the
// original intent serialized as JSON; the engine never mutates these records
// (status transitions are an external review action).
type FailedTransaction struct {
	ID            string        `json:"id"`
	OwnerID       string        `json:"ownerId"`
	RawData       []byte        `json:"rawData"`
	SchemaVersion int           `json:"schemaVersion"`
	Error         string        `json:"error"`
	Status        FailureStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
}
