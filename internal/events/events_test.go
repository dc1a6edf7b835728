package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookstore/services/library/internal/db"
	"github.com/bookstore/services/library/internal/metrics"
	"github.com/bookstore/services/library/pkg/logger"
)

func TestNewCarriesCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "req-42")

	event := New(ctx, EventTypeBookDeleted, map[string]interface{}{"book_id": "b1"})

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "req-42", event.CorrelationID)
	assert.Equal(t, eventVersion, event.EventVersion)
	_, err := time.Parse(time.RFC3339Nano, event.Timestamp)
	assert.NoError(t, err)
}

func TestEventPayloads(t *testing.T) {
	ctx := context.Background()
	isbn := "978-0441013593"
	book := &db.Book{ID: "b1", Title: "Dune", Author: "Frank Herbert", ISBN: &isbn, TotalCopies: 3, AvailableCopies: 2}

	created := BookCreated(ctx, book)
	assert.Equal(t, EventTypeBookCreated, created.EventType)
	assert.Equal(t, "Dune", created.Payload["title"])
	assert.Equal(t, isbn, created.Payload["isbn"])
	assert.Equal(t, 2, created.Payload["available_copies"])

	now := db.Now()
	returnedAt := now.Add(time.Hour)
	loan := &db.Loan{ID: "l1", BookID: "b1", MemberID: "m1", BorrowedAt: now, DueDate: now.AddDate(0, 0, 14), ReturnedAt: &returnedAt}

	borrowed := LoanBorrowed(ctx, loan, 1)
	assert.Equal(t, EventTypeLoanBorrowed, borrowed.EventType)
	assert.Equal(t, "m1", borrowed.Payload["member_id"])
	assert.Equal(t, 1, borrowed.Payload["available_copies"])
	assert.Contains(t, borrowed.Payload, "due_date")

	returned := LoanReturned(ctx, loan)
	assert.Equal(t, returnedAt.Format(time.RFC3339), returned.Payload["returned_at"])

	member := MemberCreated(ctx, &db.Member{ID: "m1", Name: "Ada", Email: "ada@x.com"})
	assert.Equal(t, "ada@x.com", member.Payload["email"])
}

func TestEventJSONEnvelope(t *testing.T) {
	event := BookDeleted(context.Background(), "b1")

	body, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "book.deleted", decoded["event_type"])
	assert.NotContains(t, decoded, "correlation_id")
	assert.Equal(t, map[string]interface{}{"book_id": "b1"}, decoded["payload"])
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	recorder := &Recorder{}
	d := NewDispatcher(recorder, logger.NewLogger("test", "error"), metrics.New(prometheus.NewRegistry()))
	ctx := context.Background()

	d.Emit(BookDeleted(ctx, "b1"))
	d.Emit(MemberCreated(ctx, &db.Member{ID: "m1"}))

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(closeCtx))

	assert.Equal(t, []string{EventTypeBookDeleted, EventTypeMemberCreated}, recorder.Types())

	assert.NotPanics(t, func() { d.Emit(BookDeleted(ctx, "late")) })
	assert.NoError(t, d.Close(closeCtx), "close is idempotent")
}

func TestDispatcherSurvivesPublishFailure(t *testing.T) {
	recorder := &Recorder{Err: errors.New("broker down")}
	d := NewDispatcher(recorder, logger.NewLogger("test", "error"), nil)

	d.Emit(BookDeleted(context.Background(), "b1"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	assert.Empty(t, recorder.Events())
}

func TestNilDispatcher(t *testing.T) {
	var d *Dispatcher

	assert.NotPanics(t, func() { d.Emit(BookDeleted(context.Background(), "b1")) })
	assert.NoError(t, d.Close(context.Background()))
}
