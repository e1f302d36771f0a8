package reservation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Service is the reservation queue manager: it admits users to a book,
// keeps the waiting queue gap-free, and rebalances it on cancellation.
type Service struct {
	store  Store
	ledger Ledger
	nowFn  func() int64
	idFn   func() string
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, idFn: uuid.NewString}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Create admits a user for a book: it holds a copy immediately when one
// is available, otherwise appends the user to the book's waiting queue.
// The availability check, the decrement, and the insert commit as one
// transaction serialized on the book row.
func (service *Service) Create(ctx context.Context, userID UserID, bookID BookID) (Reservation, error) {
	var created Reservation
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		book, err := transactionStore.GetBookForUpdate(ctx, bookID)
		if err != nil {
			return err
		}
		if err := book.CheckCounts(); err != nil {
			return WrapError(errorOperationService, errorSubjectBook, errorCodeCounts, err)
		}
		duplicate, err := transactionStore.HasActiveReservation(ctx, userID, bookID)
		if err != nil {
			return err
		}
		if duplicate {
			return ErrDuplicateReservation
		}
		consumed, err := service.ledger.TryConsume(ctx, transactionStore, bookID)
		if err != nil {
			return err
		}
		reservationID, err := NewReservationID(service.idFn())
		if err != nil {
			return err
		}
		nowUnixUTC := service.nowFn()
		if consumed {
			created = AdmitReserved(reservationID, userID, bookID, nowUnixUTC)
		} else {
			queued, err := verifyQueueContiguity(ctx, transactionStore, bookID)
			if err != nil {
				return err
			}
			nextPosition, err := NewQueuePosition(uint(queued) + 1)
			if err != nil {
				return err
			}
			created = AdmitQueued(reservationID, userID, bookID, nextPosition, nowUnixUTC)
		}
		return transactionStore.InsertReservation(ctx, created)
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationCreate,
		UserID:        userID,
		BookID:        bookID,
		ReservationID: created.ID,
		Error:         operationError,
	})
	if operationError != nil {
		return Reservation{}, operationError
	}
	return created, nil
}

// Cancel releases a user's reservation. Cancelling a held copy returns
// it to the ledger and promotes the head of the queue, which consumes
// the copy back inside the same transaction; remaining queued ranks
// compact so positions stay {1..n}.
func (service *Service) Cancel(ctx context.Context, reservationID ReservationID, requestingUserID UserID) error {
	var bookID BookID
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		record, err := transactionStore.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if record.UserID != requestingUserID {
			return ErrPermissionDenied
		}
		bookID = record.BookID
		// Take the per-book lock, then re-read: the reservation may have
		// changed between the unlocked read and lock acquisition.
		if _, err := transactionStore.GetBookForUpdate(ctx, bookID); err != nil {
			return err
		}
		record, err = transactionStore.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if _, err := verifyQueueContiguity(ctx, transactionStore, bookID); err != nil {
			return err
		}
		cancelled, err := record.Cancel()
		if err != nil {
			return err
		}
		if err := transactionStore.UpdateReservation(ctx, cancelled); err != nil {
			return err
		}
		switch record.Status {
		case ReservationStatusReserved:
			return service.reassignReleasedCopy(ctx, transactionStore, bookID)
		case ReservationStatusQueued:
			return transactionStore.ShiftQueueAfter(ctx, bookID, *record.QueuePosition)
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationCancel,
		UserID:        requestingUserID,
		BookID:        bookID,
		ReservationID: reservationID,
		Error:         operationError,
	})
	return operationError
}

// reassignReleasedCopy returns the cancelled hold to the ledger and, if
// anyone is waiting, hands it straight to the head of the queue so the
// count never stays inflated while a queue exists.
func (service *Service) reassignReleasedCopy(ctx context.Context, transactionStore Store, bookID BookID) error {
	if err := service.ledger.Release(ctx, transactionStore, bookID); err != nil {
		return err
	}
	head, ok, err := transactionStore.HeadOfQueue(ctx, bookID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	consumed, err := service.ledger.TryConsume(ctx, transactionStore, bookID)
	if err != nil {
		return err
	}
	if !consumed {
		return WrapError(errorOperationService, errorSubjectBook, errorCodePromote, ErrInvariantViolation)
	}
	vacated := *head.QueuePosition
	promoted, err := head.Promote()
	if err != nil {
		return err
	}
	if err := transactionStore.UpdateReservation(ctx, promoted); err != nil {
		return err
	}
	return transactionStore.ShiftQueueAfter(ctx, bookID, vacated)
}

// verifyQueueContiguity checks the queued positions for a book form
// {1..n} and returns n. Gaps or duplicates mean a bug already corrupted
// the queue; the operation aborts instead of repairing the data.
func verifyQueueContiguity(ctx context.Context, store Store, bookID BookID) (int, error) {
	positions, err := store.QueuedPositions(ctx, bookID)
	if err != nil {
		return 0, err
	}
	for index, position := range positions {
		if position.Uint() != uint(index)+1 {
			return 0, WrapError(errorOperationService, errorSubjectQueue, errorCodeContiguity, ErrInvariantViolation)
		}
	}
	return len(positions), nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
