// Package events publishes library domain events to RabbitMQ.
// Publishing is best effort and never changes the outcome of the operation that produced the event.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bookstore/services/library/internal/db"
)

// Event types, also used as routing keys
const (
	EventTypeBookCreated        = "book.created"
	EventTypeBookDeleted        = "book.deleted"
	EventTypeBookCopiesAdjusted = "book.copies_adjusted"
	EventTypeMemberCreated      = "member.created"
	EventTypeLoanBorrowed       = "loan.borrowed"
	EventTypeLoanReturned       = "loan.returned"

	eventVersion = "1.0.0"
)

// Event represents a domain event
type Event struct {
	EventID       string                 `json:"event_id"`
	EventType     string                 `json:"event_type"`
	EventVersion  string                 `json:"event_version"`
	Timestamp     string                 `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
}

// Publisher delivers one event
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type correlationKey struct{}

// WithCorrelationID tags ctx so events built from it carry id
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id stored by WithCorrelationID
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// New builds an event envelope
func New(ctx context.Context, eventType string, payload map[string]interface{}) Event {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Event{
		EventID:       id.String(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		CorrelationID: CorrelationID(ctx),
		Payload:       payload,
	}
}

func BookCreated(ctx context.Context, book *db.Book) Event {
	payload := bookPayload(book)
	payload["title"] = book.Title
	payload["author"] = book.Author
	payload["category"] = book.Category
	if book.ISBN != nil {
		payload["isbn"] = *book.ISBN
	}
	return New(ctx, EventTypeBookCreated, payload)
}

func BookDeleted(ctx context.Context, bookID string) Event {
	return New(ctx, EventTypeBookDeleted, map[string]interface{}{"book_id": bookID})
}

func BookCopiesAdjusted(ctx context.Context, book *db.Book) Event {
	return New(ctx, EventTypeBookCopiesAdjusted, bookPayload(book))
}

func MemberCreated(ctx context.Context, member *db.Member) Event {
	return New(ctx, EventTypeMemberCreated, map[string]interface{}{
		"member_id": member.ID,
		"name":      member.Name,
		"email":     member.Email,
	})
}

// LoanBorrowed carries the loan and the copies left after the borrow
func LoanBorrowed(ctx context.Context, loan *db.Loan, availableCopies int) Event {
	payload := loanPayload(loan)
	payload["due_date"] = loan.DueDate.Format(time.RFC3339)
	payload["available_copies"] = availableCopies
	return New(ctx, EventTypeLoanBorrowed, payload)
}

func LoanReturned(ctx context.Context, loan *db.Loan) Event {
	payload := loanPayload(loan)
	if loan.ReturnedAt != nil {
		payload["returned_at"] = loan.ReturnedAt.Format(time.RFC3339)
	}
	return New(ctx, EventTypeLoanReturned, payload)
}

func bookPayload(book *db.Book) map[string]interface{} {
	return map[string]interface{}{
		"book_id":          book.ID,
		"total_copies":     book.TotalCopies,
		"available_copies": book.AvailableCopies,
	}
}

func loanPayload(loan *db.Loan) map[string]interface{} {
	return map[string]interface{}{
		"loan_id":     loan.ID,
		"book_id":     loan.BookID,
		"member_id":   loan.MemberID,
		"borrowed_at": loan.BorrowedAt.Format(time.RFC3339),
	}
}
