package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/store/memstore"
)

func TestAppendSerializesRawInput(t *testing.T) {
	st := memstore.New()
	log := NewLog(st, zerolog.Nop())

	log.Append(context.Background(), "owner-1", map[string]string{"description": "coffee"}, "insufficient funds")

	failures := st.Failures()
	require.Len(t, failures, 1)
	f := failures[0]
	assert.Equal(t, "owner-1", f.OwnerID)
	assert.Equal(t, "insufficient funds", f.Error)
	assert.Equal(t, domain.FailurePendingReview, f.Status)
	assert.Equal(t, domain.RawSchemaVersion, f.SchemaVersion)
	assert.NotEmpty(t, f.ID)
	assert.False(t, f.CreatedAt.IsZero())
	assert.JSONEq(t, `{"description":"coffee"}`, string(f.RawData))
}

type failingAppender struct{}

func (failingAppender) AppendFailure(ctx context.Context, f *domain.FailedTransaction) error {
	return errors.New("store down")
}

func TestAppendNeverFailsCaller(t *testing.T) {
	log := NewLog(failingAppender{}, zerolog.Nop())

	// Append has no error return by contract; this must simply not panic.
	log.Append(context.Background(), "owner-1", "raw", "boom")
}
