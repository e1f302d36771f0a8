package reservation

import "context"

// Ledger owns the per-book availability counts. No other component
// mutates available_copies; the Service invokes it inside the same
// transaction that rewrites the queue.
type Ledger struct{}

// TryConsume decrements available_copies by one if a copy is free and
// reports whether it did. The book row is read under the transaction's
// exclusive lock, so check and decrement cannot interleave with another
// operation on the same book.
func (Ledger) TryConsume(ctx context.Context, store Store, bookID BookID) (bool, error) {
	book, err := store.GetBookForUpdate(ctx, bookID)
	if err != nil {
		return false, err
	}
	if err := book.CheckCounts(); err != nil {
		return false, WrapError(errorOperationLedger, errorSubjectBook, errorCodeCounts, err)
	}
	if book.AvailableCopies == 0 {
		return false, nil
	}
	if err := store.SetAvailableCopies(ctx, bookID, book.AvailableCopies-1); err != nil {
		return false, err
	}
	return true, nil
}

// Release returns one copy to the pool. Callers only release to undo a
// prior successful TryConsume, so a count already at total_copies means
// the stored data is corrupt and the transaction must abort.
func (Ledger) Release(ctx context.Context, store Store, bookID BookID) error {
	book, err := store.GetBookForUpdate(ctx, bookID)
	if err != nil {
		return err
	}
	if book.AvailableCopies >= book.TotalCopies {
		return WrapError(errorOperationLedger, errorSubjectBook, errorCodeRelease, ErrInvariantViolation)
	}
	return store.SetAvailableCopies(ctx, bookID, book.AvailableCopies+1)
}
