package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Book represents a catalog title and its copy accounting.
// AvailableCopies and WithdrawnCopies are only written by the inventory ledger.
type Book struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title           string    `gorm:"type:varchar(255);not null;index:idx_books_title" json:"title"`
	Author          string    `gorm:"type:varchar(255);not null;index:idx_books_author" json:"author"`
	Category        string    `gorm:"type:varchar(100);index:idx_books_category" json:"category"`
	ISBN            *string   `gorm:"type:varchar(32);uniqueIndex:idx_books_isbn" json:"isbn"`
	TotalCopies     int       `gorm:"not null;default:0;check:chk_books_total_copies,total_copies >= 0" json:"total_copies"`
	AvailableCopies int       `gorm:"not null;default:0;check:chk_books_available_copies,available_copies >= 0 AND available_copies <= total_copies" json:"available_copies"`
	WithdrawnCopies int       `gorm:"not null;default:0;check:chk_books_withdrawn_copies,withdrawn_copies >= 0" json:"-"` // on neither shelf nor loan
	CreatedAt       time.Time `gorm:"not null;index:idx_books_created_at" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for Book model
func (Book) TableName() string {
	return "books"
}

// BeforeCreate assigns a time-ordered id and timestamps
func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = newID()
	}
	b.CreatedAt, b.UpdatedAt = stamp(b.CreatedAt, b.UpdatedAt)
	return nil
}

// Member is a registered library patron.
type Member struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(320);not null;uniqueIndex:idx_members_email" json:"email"`
	Phone     string    `gorm:"type:varchar(50)" json:"phone"`
	CreatedAt time.Time `gorm:"not null;index:idx_members_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for Member model
func (Member) TableName() string {
	return "members"
}

// BeforeCreate assigns a time-ordered id and timestamps
func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = newID()
	}
	m.CreatedAt, m.UpdatedAt = stamp(m.CreatedAt, m.UpdatedAt)
	return nil
}

// Loan is one copy of a book checked out by a member. Loans are never deleted.
type Loan struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BookID     string     `gorm:"type:varchar(36);not null;index:idx_loans_book" json:"book_id"`
	MemberID   string     `gorm:"type:varchar(36);not null;index:idx_loans_member" json:"member_id"`
	BorrowedAt time.Time  `gorm:"not null" json:"borrowed_at"`
	DueDate    time.Time  `gorm:"not null" json:"due_date"`
	Returned   bool       `gorm:"not null;default:false;index:idx_loans_returned" json:"returned"`
	ReturnedAt *time.Time `json:"returned_at"`

	Book   *Book   `gorm:"foreignKey:BookID" json:"book,omitempty"`
	Member *Member `gorm:"foreignKey:MemberID" json:"member,omitempty"`
}

// TableName specifies the table name for Loan model
func (Loan) TableName() string {
	return "loans"
}

// BeforeCreate assigns a time-ordered id
func (l *Loan) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = newID()
	}
	return nil
}

// Now returns the current time in the precision every supported database can store.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// newID returns a UUIDv7 so ids sort in creation order.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func stamp(created, updated time.Time) (time.Time, time.Time) {
	now := Now()
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = created
	}
	return created, updated
}
