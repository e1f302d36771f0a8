package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/menaback-dev/Library-reservation-and-catalog-system/pkg/reservation"
)

const (
	pgSerializationFailure  = "40001"
	pgDeadlockDetected      = "40P01"
	pgLockNotAvailable      = "55P03"
	errorOperationStore     = "store"
	errorSubjectBook        = "book"
	errorSubjectReservation = "reservation"
	errorSubjectQueue       = "queue"
	errorSubjectTransaction = "transaction"
	errorCodeBegin          = "begin"
	errorCodeCommit         = "commit"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeLock           = "lock"
	errorCodeShift          = "shift"
	errorCodeTransient      = "transient"
	errorCodeUpdate         = "update"

	sqlSelectBookForUpdate = `
		select book_id, total_copies, available_copies
		from books
		where book_id = $1
		for update
	`

	sqlUpdateAvailableCopies = `
		update books set available_copies = $2, updated_at = now()
		where book_id = $1
	`

	sqlSelectReservation = `
		select reservation_id, user_id, book_id, status, queue_position, extract(epoch from reserved_at)::bigint
		from reservations
		where reservation_id = $1
	`

	sqlCountActiveForUserBook = `
		select count(*) from reservations
		where user_id = $1 and book_id = $2 and status in ('reserved','queued')
	`

	sqlInsertReservation = `
		insert into reservations(reservation_id, user_id, book_id, status, queue_position, reserved_at, updated_at)
		values ($1, $2, $3, $4, $5, to_timestamp($6), now())
	`

	sqlUpdateReservation = `
		update reservations set status = $2, queue_position = $3, updated_at = now()
		where reservation_id = $1
	`

	sqlSelectHeadOfQueue = `
		select reservation_id, user_id, book_id, status, queue_position, extract(epoch from reserved_at)::bigint
		from reservations
		where book_id = $1 and status = 'queued'
		order by queue_position asc
		limit 1
	`

	sqlSelectQueuedPositions = `
		select queue_position from reservations
		where book_id = $1 and status = 'queued'
		order by queue_position asc
	`

	sqlShiftQueueAfter = `
		update reservations set queue_position = queue_position - 1, updated_at = now()
		where book_id = $1 and status = 'queued' and queue_position > $2
	`

	sqlListActiveForUser = `
		select reservation_id, user_id, book_id, status, queue_position, extract(epoch from reserved_at)::bigint
		from reservations
		where user_id = $1 and status in ('reserved','queued')
		order by reserved_at desc
	`
)

// querier is the subset of pgx shared by a pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements reservation.Store using a pgx connection pool
// (autocommit outside WithTx).
type Store struct {
	queries
	pool *pgxpool.Pool
}

// TxStore implements reservation.Store for an active transaction.
type TxStore struct {
	queries
	tx pgx.Tx
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{queries: queries{q: pool}, pool: pool}
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore reservation.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	transactionStore := &TxStore{queries: queries{q: tx}, tx: tx}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return mapTransient(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapTransient(wrapStoreError(errorSubjectTransaction, errorCodeCommit, err))
	}
	return nil
}

// WithTx on a TxStore reuses the already-open transaction.
func (store *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore reservation.Store) error) error {
	return fn(ctx, store)
}

// queries holds the statements shared by Store and TxStore.
type queries struct {
	q querier
}

func (queries queries) GetBookForUpdate(ctx context.Context, bookID reservation.BookID) (reservation.Book, error) {
	var (
		bookIDValue     string
		totalCopies     uint
		availableCopies uint
	)
	err := queries.q.QueryRow(ctx, sqlSelectBookForUpdate, bookID.String()).Scan(&bookIDValue, &totalCopies, &availableCopies)
	if errors.Is(err, pgx.ErrNoRows) {
		return reservation.Book{}, wrapStoreError(errorSubjectBook, errorCodeGet, reservation.ErrBookNotFound)
	}
	if err != nil {
		return reservation.Book{}, mapTransient(wrapStoreError(errorSubjectBook, errorCodeLock, err))
	}
	parsedBookID, err := reservation.NewBookID(bookIDValue)
	if err != nil {
		return reservation.Book{}, wrapStoreError(errorSubjectBook, errorCodeInvalid, err)
	}
	return reservation.Book{
		ID:              parsedBookID,
		TotalCopies:     totalCopies,
		AvailableCopies: availableCopies,
	}, nil
}

func (queries queries) SetAvailableCopies(ctx context.Context, bookID reservation.BookID, available uint) error {
	tag, err := queries.q.Exec(ctx, sqlUpdateAvailableCopies, bookID.String(), available)
	if err != nil {
		return wrapStoreError(errorSubjectBook, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectBook, errorCodeUpdate, reservation.ErrBookNotFound)
	}
	return nil
}

func (queries queries) GetReservation(ctx context.Context, reservationID reservation.ReservationID) (reservation.Reservation, error) {
	record, err := scanReservation(queries.q.QueryRow(ctx, sqlSelectReservation, reservationID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return reservation.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, reservation.ErrReservationNotFound)
	}
	if err != nil {
		return reservation.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, err)
	}
	return record, nil
}

func (queries queries) HasActiveReservation(ctx context.Context, userID reservation.UserID, bookID reservation.BookID) (bool, error) {
	var count int64
	err := queries.q.QueryRow(ctx, sqlCountActiveForUserBook, userID.String(), bookID.String()).Scan(&count)
	if err != nil {
		return false, wrapStoreError(errorSubjectReservation, errorCodeGet, err)
	}
	return count > 0, nil
}

func (queries queries) InsertReservation(ctx context.Context, record reservation.Reservation) error {
	_, err := queries.q.Exec(ctx, sqlInsertReservation,
		record.ID.String(),
		record.UserID.String(),
		record.BookID.String(),
		record.Status.String(),
		queuePositionValue(record.QueuePosition),
		record.ReservedAtUnixUTC,
	)
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeInsert, err)
	}
	return nil
}

func (queries queries) UpdateReservation(ctx context.Context, record reservation.Reservation) error {
	tag, err := queries.q.Exec(ctx, sqlUpdateReservation,
		record.ID.String(),
		record.Status.String(),
		queuePositionValue(record.QueuePosition),
	)
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdate, reservation.ErrReservationNotFound)
	}
	return nil
}

func (queries queries) HeadOfQueue(ctx context.Context, bookID reservation.BookID) (reservation.Reservation, bool, error) {
	record, err := scanReservation(queries.q.QueryRow(ctx, sqlSelectHeadOfQueue, bookID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return reservation.Reservation{}, false, nil
	}
	if err != nil {
		return reservation.Reservation{}, false, wrapStoreError(errorSubjectQueue, errorCodeGet, err)
	}
	return record, true, nil
}

func (queries queries) QueuedPositions(ctx context.Context, bookID reservation.BookID) ([]reservation.QueuePosition, error) {
	rows, err := queries.q.Query(ctx, sqlSelectQueuedPositions, bookID.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectQueue, errorCodeList, err)
	}
	defer rows.Close()
	var positions []reservation.QueuePosition
	for rows.Next() {
		var value uint
		if err := rows.Scan(&value); err != nil {
			return nil, wrapStoreError(errorSubjectQueue, errorCodeList, err)
		}
		position, err := reservation.NewQueuePosition(value)
		if err != nil {
			return nil, wrapStoreError(errorSubjectQueue, errorCodeInvalid, err)
		}
		positions = append(positions, position)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectQueue, errorCodeList, err)
	}
	return positions, nil
}

func (queries queries) ShiftQueueAfter(ctx context.Context, bookID reservation.BookID, vacated reservation.QueuePosition) error {
	_, err := queries.q.Exec(ctx, sqlShiftQueueAfter, bookID.String(), vacated.Uint())
	if err != nil {
		return wrapStoreError(errorSubjectQueue, errorCodeShift, err)
	}
	return nil
}

func (queries queries) ListActiveReservations(ctx context.Context, userID reservation.UserID) ([]reservation.Reservation, error) {
	rows, err := queries.q.Query(ctx, sqlListActiveForUser, userID.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectReservation, errorCodeList, err)
	}
	defer rows.Close()
	var records []reservation.Reservation
	for rows.Next() {
		record, err := scanReservation(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectReservation, errorCodeList, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectReservation, errorCodeList, err)
	}
	return records, nil
}

func scanReservation(row pgx.Row) (reservation.Reservation, error) {
	var (
		reservationIDValue string
		userIDValue        string
		bookIDValue        string
		statusValue        string
		positionValue      *uint
		reservedAtUnixUTC  int64
	)
	if err := row.Scan(&reservationIDValue, &userIDValue, &bookIDValue, &statusValue, &positionValue, &reservedAtUnixUTC); err != nil {
		return reservation.Reservation{}, err
	}
	reservationID, err := reservation.NewReservationID(reservationIDValue)
	if err != nil {
		return reservation.Reservation{}, err
	}
	userID, err := reservation.NewUserID(userIDValue)
	if err != nil {
		return reservation.Reservation{}, err
	}
	bookID, err := reservation.NewBookID(bookIDValue)
	if err != nil {
		return reservation.Reservation{}, err
	}
	status, err := reservation.ParseReservationStatus(statusValue)
	if err != nil {
		return reservation.Reservation{}, err
	}
	var position *reservation.QueuePosition
	if positionValue != nil {
		parsed, err := reservation.NewQueuePosition(*positionValue)
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
		ReservedAtUnixUTC: reservedAtUnixUTC,
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

func mapTransient(err error) error {
	if err == nil || errors.Is(err, reservation.ErrTransientStore) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return wrapStoreError(errorSubjectTransaction, errorCodeTransient, fmt.Errorf("%w: %v", reservation.ErrTransientStore, err))
		}
	}
	return err
}
