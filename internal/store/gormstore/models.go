package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category represents the categories table.
type Category struct {
	CategoryID string    `gorm:"type:uuid;primaryKey"`
	Name       string    `gorm:"not null;uniqueIndex:uniq_categories_name"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (Category) TableName() string { return "categories" }

func (category *Category) BeforeCreate(tx *gorm.DB) error {
	if category.CategoryID == "" {
		category.CategoryID = uuid.NewString()
	}
	return nil
}

// Book mirrors the books table. AvailableCopies is only written inside
// a transaction holding the row lock taken by GetBookForUpdate.
type Book struct {
	BookID          string    `gorm:"type:uuid;primaryKey"`
	Title           string    `gorm:"not null;index:idx_books_title"`
	Author          string    `gorm:"not null"`
	ISBN            *string   `gorm:"uniqueIndex:uniq_books_isbn"`
	CategoryID      *string   `gorm:"type:uuid;index:idx_books_category"`
	TotalCopies     uint      `gorm:"not null"`
	AvailableCopies uint      `gorm:"not null"`
	CoverImageURL   string    `gorm:""`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (Book) TableName() string { return "books" }

func (book *Book) BeforeCreate(tx *gorm.DB) error {
	if book.BookID == "" {
		book.BookID = uuid.NewString()
	}
	return nil
}

// Reservation mirrors the reservations table. Cancelled rows are kept,
// so active-per-(user,book) uniqueness is enforced by the service under
// the book row lock, not by a constraint.
type Reservation struct {
	ReservationID string    `gorm:"type:uuid;primaryKey"`
	UserID        string    `gorm:"not null;index:idx_reservations_user_book,priority:1"`
	BookID        string    `gorm:"type:uuid;not null;index:idx_reservations_user_book,priority:2;index:idx_reservations_book_status,priority:1"`
	Status        string    `gorm:"not null;index:idx_reservations_book_status,priority:2"`
	QueuePosition *uint     `gorm:""`
	ReservedAt    time.Time `gorm:"not null;index:idx_reservations_reserved_at"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (Reservation) TableName() string { return "reservations" }
