package reservation

import (
	"context"
	"fmt"
	"strings"
)

// UserID identifies the authenticated principal owning a reservation.
type UserID struct {
	value string
}

// BookID identifies a catalog book.
type BookID struct {
	value string
}

// ReservationID identifies a reservation.
type ReservationID struct {
	value string
}

// QueuePosition is the 1-based rank among queued reservations for a book.
type QueuePosition uint

// ReservationStatus defines the reservation lifecycle.
type ReservationStatus string

const (
	ReservationStatusReserved  ReservationStatus = "reserved"
	ReservationStatusQueued    ReservationStatus = "queued"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// NewBookID validates and normalizes a book id.
func NewBookID(raw string) (BookID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return BookID{}, fmt.Errorf("%w: empty value", ErrInvalidBookID)
	}
	return BookID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id BookID) String() string {
	return id.value
}

// NewReservationID validates and normalizes a reservation id.
func NewReservationID(raw string) (ReservationID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ReservationID{}, fmt.Errorf("%w: empty value", ErrInvalidReservationID)
	}
	return ReservationID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ReservationID) String() string {
	return id.value
}

// NewQueuePosition validates a queue position; ranks start at 1.
func NewQueuePosition(raw uint) (QueuePosition, error) {
	if raw == 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidQueuePosition)
	}
	return QueuePosition(raw), nil
}

// Uint returns the numeric rank.
func (position QueuePosition) Uint() uint {
	return uint(position)
}

// ParseReservationStatus validates a stored status value.
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	switch ReservationStatus(raw) {
	case ReservationStatusReserved, ReservationStatusQueued, ReservationStatusCancelled:
		return ReservationStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidReservationStatus, raw)
}

// String returns the stored status value.
func (status ReservationStatus) String() string {
	return string(status)
}

// Book is the ledger's view of a catalog book: the two copy counters.
type Book struct {
	ID              BookID
	TotalCopies     uint
	AvailableCopies uint
}

// CheckCounts verifies 0 <= available_copies <= total_copies.
func (book Book) CheckCounts() error {
	if book.AvailableCopies > book.TotalCopies {
		return fmt.Errorf("%w: book %s has %d available of %d total", ErrInvariantViolation, book.ID.String(), book.AvailableCopies, book.TotalCopies)
	}
	return nil
}

// Reservation is one user's claim on one book.
// QueuePosition is set if and only if Status is queued.
type Reservation struct {
	ID                ReservationID
	UserID            UserID
	BookID            BookID
	Status            ReservationStatus
	QueuePosition     *QueuePosition
	ReservedAtUnixUTC int64
}

// AdmitReserved creates a reservation holding a copy immediately.
func AdmitReserved(id ReservationID, userID UserID, bookID BookID, nowUnixUTC int64) Reservation {
	return Reservation{
		ID:                id,
		UserID:            userID,
		BookID:            bookID,
		Status:            ReservationStatusReserved,
		ReservedAtUnixUTC: nowUnixUTC,
	}
}

// AdmitQueued creates a reservation waiting at the given rank.
func AdmitQueued(id ReservationID, userID UserID, bookID BookID, position QueuePosition, nowUnixUTC int64) Reservation {
	return Reservation{
		ID:                id,
		UserID:            userID,
		BookID:            bookID,
		Status:            ReservationStatusQueued,
		QueuePosition:     &position,
		ReservedAtUnixUTC: nowUnixUTC,
	}
}

// IsActive reports whether the reservation still holds or waits for a copy.
func (record Reservation) IsActive() bool {
	return record.Status == ReservationStatusReserved || record.Status == ReservationStatusQueued
}

// Promote moves the head of the queue into the reserved state.
func (record Reservation) Promote() (Reservation, error) {
	if record.Status != ReservationStatusQueued {
		return Reservation{}, fmt.Errorf("%w: promote from %s", ErrInvalidTransition, record.Status)
	}
	promoted := record
	promoted.Status = ReservationStatusReserved
	promoted.QueuePosition = nil
	return promoted, nil
}

// Cancel moves an active reservation into the terminal cancelled state.
func (record Reservation) Cancel() (Reservation, error) {
	if !record.IsActive() {
		return Reservation{}, ErrReservationClosed
	}
	cancelled := record
	cancelled.Status = ReservationStatusCancelled
	cancelled.QueuePosition = nil
	return cancelled, nil
}

// Store is the persistence contract used by Service and Ledger.
// Every method runs inside the transaction opened by WithTx; the
// implementation's GetBookForUpdate must take an exclusive per-book
// lock so concurrent operations on the same book serialize.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetBookForUpdate(ctx context.Context, bookID BookID) (Book, error)
	SetAvailableCopies(ctx context.Context, bookID BookID, available uint) error
	GetReservation(ctx context.Context, reservationID ReservationID) (Reservation, error)
	HasActiveReservation(ctx context.Context, userID UserID, bookID BookID) (bool, error)
	InsertReservation(ctx context.Context, record Reservation) error
	UpdateReservation(ctx context.Context, record Reservation) error
	HeadOfQueue(ctx context.Context, bookID BookID) (Reservation, bool, error)
	QueuedPositions(ctx context.Context, bookID BookID) ([]QueuePosition, error)
	ShiftQueueAfter(ctx context.Context, bookID BookID, vacated QueuePosition) error
	ListActiveReservations(ctx context.Context, userID UserID) ([]Reservation, error)
}
