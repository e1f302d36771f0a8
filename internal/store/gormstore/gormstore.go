package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/menaback-dev/Library-reservation-and-catalog-system/pkg/reservation"
)

const (
	pgUniqueViolationCode     = "23505"
	pgSerializationFailure    = "40001"
	pgDeadlockDetected        = "40P01"
	pgLockNotAvailable        = "55P03"
	sqliteConstraintCode      = 19
	sqliteBusyCode            = 5
	sqliteLockedCode          = 6
	errorOperationStore       = "store"
	errorSubjectBook          = "book"
	errorSubjectReservation   = "reservation"
	errorSubjectQueue         = "queue"
	errorSubjectTransaction   = "transaction"
	errorCodeGet              = "get"
	errorCodeInsert           = "insert"
	errorCodeInvalid          = "invalid"
	errorCodeList             = "list"
	errorCodeLock             = "lock"
	errorCodeShift            = "shift"
	errorCodeTransient        = "transient"
	errorCodeUpdate           = "update"
)

var activeStatuses = []string{
	reservation.ReservationStatusReserved.String(),
	reservation.ReservationStatusQueued.String(),
}

// Store implements reservation.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction. Lock timeouts, deadlocks,
// and serialization conflicts surface as reservation.ErrTransientStore
// so callers can retry.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore reservation.Store) error) error {
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
	if err != nil && isTransientError(err) && !errors.Is(err, reservation.ErrTransientStore) {
		return wrapStoreError(errorSubjectTransaction, errorCodeTransient, fmt.Errorf("%w: %v", reservation.ErrTransientStore, err))
	}
	return err
}

// GetBookForUpdate locks the book row; every create/cancel for a book
// funnels through this lock.
func (store *Store) GetBookForUpdate(ctx context.Context, bookID reservation.BookID) (reservation.Book, error) {
	var model Book
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("book_id = ?", bookID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reservation.Book{}, wrapStoreError(errorSubjectBook, errorCodeGet, reservation.ErrBookNotFound)
		}
		return reservation.Book{}, wrapStoreError(errorSubjectBook, errorCodeLock, err)
	}
	parsedBookID, err := reservation.NewBookID(model.BookID)
	if err != nil {
		return reservation.Book{}, wrapStoreError(errorSubjectBook, errorCodeInvalid, err)
	}
	return reservation.Book{
		ID:              parsedBookID,
		TotalCopies:     model.TotalCopies,
		AvailableCopies: model.AvailableCopies,
	}, nil
}

func (store *Store) SetAvailableCopies(ctx context.Context, bookID reservation.BookID, available uint) error {
	result := store.db.WithContext(ctx).
		Model(&Book{}).
		Where("book_id = ?", bookID.String()).
		Update("available_copies", available)
	if result.Error != nil {
		return wrapStoreError(errorSubjectBook, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBook, errorCodeUpdate, reservation.ErrBookNotFound)
	}
	return nil
}

func (store *Store) GetReservation(ctx context.Context, reservationID reservation.ReservationID) (reservation.Reservation, error) {
	var model Reservation
	err := store.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reservation.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, reservation.ErrReservationNotFound)
		}
		return reservation.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, err)
	}
	record, err := mapReservation(model)
	if err != nil {
		return reservation.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
	}
	return record, nil
}

func (store *Store) HasActiveReservation(ctx context.Context, userID reservation.UserID, bookID reservation.BookID) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("user_id = ? AND book_id = ? AND status IN ?", userID.String(), bookID.String(), activeStatuses).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectReservation, errorCodeGet, err)
	}
	return count > 0, nil
}

func (store *Store) InsertReservation(ctx context.Context, record reservation.Reservation) error {
	model := Reservation{
		ReservationID: record.ID.String(),
		UserID:        record.UserID.String(),
		BookID:        record.BookID.String(),
		Status:        record.Status.String(),
		QueuePosition: queuePositionValue(record.QueuePosition),
		ReservedAt:    time.Unix(record.ReservedAtUnixUTC, 0).UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) UpdateReservation(ctx context.Context, record reservation.Reservation) error {
	result := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("reservation_id = ?", record.ID.String()).
		Updates(map[string]interface{}{
			"status":         record.Status.String(),
			"queue_position": queuePositionValue(record.QueuePosition),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdate, reservation.ErrReservationNotFound)
	}
	return nil
}

func (store *Store) HeadOfQueue(ctx context.Context, bookID reservation.BookID) (reservation.Reservation, bool, error) {
	var model Reservation
	err := store.db.WithContext(ctx).
		Where("book_id = ? AND status = ?", bookID.String(), reservation.ReservationStatusQueued.String()).
		Order("queue_position asc").
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reservation.Reservation{}, false, nil
		}
		return reservation.Reservation{}, false, wrapStoreError(errorSubjectQueue, errorCodeGet, err)
	}
	record, err := mapReservation(model)
	if err != nil {
		return reservation.Reservation{}, false, wrapStoreError(errorSubjectQueue, errorCodeInvalid, err)
	}
	return record, true, nil
}

func (store *Store) QueuedPositions(ctx context.Context, bookID reservation.BookID) ([]reservation.QueuePosition, error) {
	var raw []uint
	err := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("book_id = ? AND status = ?", bookID.String(), reservation.ReservationStatusQueued.String()).
		Order("queue_position asc").
		Pluck("queue_position", &raw).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectQueue, errorCodeList, err)
	}
	positions := make([]reservation.QueuePosition, 0, len(raw))
	for _, value := range raw {
		position, err := reservation.NewQueuePosition(value)
		if err != nil {
			return nil, wrapStoreError(errorSubjectQueue, errorCodeInvalid, err)
		}
		positions = append(positions, position)
	}
	return positions, nil
}

func (store *Store) ShiftQueueAfter(ctx context.Context, bookID reservation.BookID, vacated reservation.QueuePosition) error {
	err := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("book_id = ? AND status = ? AND queue_position > ?", bookID.String(), reservation.ReservationStatusQueued.String(), vacated.Uint()).
		Update("queue_position", gorm.Expr("queue_position - 1")).Error
	if err != nil {
		return wrapStoreError(errorSubjectQueue, errorCodeShift, err)
	}
	return nil
}

func (store *Store) ListActiveReservations(ctx context.Context, userID reservation.UserID) ([]reservation.Reservation, error) {
	var rows []Reservation
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID.String(), activeStatuses).
		Order("reserved_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectReservation, errorCodeList, err)
	}
	records := make([]reservation.Reservation, 0, len(rows))
	for _, row := range rows {
		record, err := mapReservation(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func mapReservation(model Reservation) (reservation.Reservation, error) {
	reservationID, err := reservation.NewReservationID(model.ReservationID)
	if err != nil {
		return reservation.Reservation{}, err
	}
	userID, err := reservation.NewUserID(model.UserID)
	if err != nil {
		return reservation.Reservation{}, err
	}
	bookID, err := reservation.NewBookID(model.BookID)
	if err != nil {
		return reservation.Reservation{}, err
	}
	status, err := reservation.ParseReservationStatus(model.Status)
	if err != nil {
		return reservation.Reservation{}, err
	}
	var position *reservation.QueuePosition
	if model.QueuePosition != nil {
		parsed, err := reservation.NewQueuePosition(*model.QueuePosition)
		if err != nil {
			return reservation.Reservation{}, err
		}
		position = &parsed
	}
	return reservation.Reservation{
		ID:                reservationID,
		UserID:            userID,
		BookID:            bookID,
		Status:            status,
		QueuePosition:     position,
		ReservedAtUnixUTC: model.ReservedAt.Unix(),
	}, nil
}

func queuePositionValue(position *reservation.QueuePosition) *uint {
	if position == nil {
		return nil
	}
	value := position.Uint()
	return &value
}

func wrapStoreError(subject string, code string, err error) error {
	return reservation.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
		return false
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code() & 0xFF
		return code == sqliteBusyCode || code == sqliteLockedCode
	}
	return false
}
