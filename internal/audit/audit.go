// Package audit records failed ledger-mutating attempts for manual
// reconciliation.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
)

// Appender is the slice of the store the audit log needs.
type Appender interface {
	AppendFailure(ctx context.Context, f *domain.FailedTransaction) error
}

// Log appends FailedTransaction records. Append is fire-and-forget relative
// to the aborted scope it describes: a failure to audit is logged but never
// surfaced to the caller, so the original ledger error is what propagates.
type Log struct {
	appender Appender
	logger   zerolog.Logger
}

// NewLog creates a failure audit log.
func NewLog(appender Appender, logger zerolog.Logger) *Log {
	return &Log{appender: appender, logger: logger}
}

// Append records a failed attempt with a snapshot of the raw input. The
// snapshot is serialized as JSON and tagged with the current schema version
// so it stays decodable for replay.
func (l *Log) Append(ctx context.Context, ownerID string, rawInput any, errMsg string) {
	raw, err := json.Marshal(rawInput)
	if err != nil {
		raw = []byte(fmt.Sprintf("%q", fmt.Sprintf("%+v", rawInput)))
	}

	record := &domain.FailedTransaction{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		RawData:       raw,
		SchemaVersion: domain.RawSchemaVersion,
		Error:         errMsg,
		Status:        domain.FailurePendingReview,
		CreatedAt:     time.Now(),
	}

	if err := l.appender.AppendFailure(ctx, record); err != nil {
		l.logger.Error().Err(err).
			Str("ownerId", ownerID).
			Str("failureError", errMsg).
			Msg("failed to append failure audit record")
	}
}
