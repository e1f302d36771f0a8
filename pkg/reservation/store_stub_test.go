package reservation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
)

type stubBook struct {
	totalCopies     uint
	availableCopies uint
}

// stubStore is an in-memory Store. WithTx serializes transactions with
// a mutex, mirroring the per-book critical section of the real stores.
type stubStore struct {
	txMu    sync.Mutex
	books   map[string]*stubBook
	records map[string]Reservation
	inserts []string

	getBookError        error
	setCopiesError      error
	getReservationError error
	hasActiveError      error
	insertError         error
	updateError         error
	headError           error
	positionsError      error
	shiftError          error
	listError           error
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		books:   map[string]*stubBook{},
		records: map[string]Reservation{},
	}
}

func (store *stubStore) addBook(test *testing.T, rawBookID string, totalCopies uint, availableCopies uint) BookID {
	test.Helper()
	bookID := mustBookID(test, rawBookID)
	store.books[bookID.String()] = &stubBook{totalCopies: totalCopies, availableCopies: availableCopies}
	return bookID
}

func (store *stubStore) addReservation(test *testing.T, record Reservation) {
	test.Helper()
	store.records[record.ID.String()] = record
	store.inserts = append(store.inserts, record.ID.String())
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.txMu.Lock()
	defer store.txMu.Unlock()
	return fn(ctx, store)
}

func (store *stubStore) GetBookForUpdate(_ context.Context, bookID BookID) (Book, error) {
	if store.getBookError != nil {
		return Book{}, store.getBookError
	}
	book, ok := store.books[bookID.String()]
	if !ok {
		return Book{}, ErrBookNotFound
	}
	return Book{ID: bookID, TotalCopies: book.totalCopies, AvailableCopies: book.availableCopies}, nil
}

func (store *stubStore) SetAvailableCopies(_ context.Context, bookID BookID, available uint) error {
	if store.setCopiesError != nil {
		return store.setCopiesError
	}
	book, ok := store.books[bookID.String()]
	if !ok {
		return ErrBookNotFound
	}
	book.availableCopies = available
	return nil
}

func (store *stubStore) GetReservation(_ context.Context, reservationID ReservationID) (Reservation, error) {
	if store.getReservationError != nil {
		return Reservation{}, store.getReservationError
	}
	record, ok := store.records[reservationID.String()]
	if !ok {
		return Reservation{}, ErrReservationNotFound
	}
	return record, nil
}

func (store *stubStore) HasActiveReservation(_ context.Context, userID UserID, bookID BookID) (bool, error) {
	if store.hasActiveError != nil {
		return false, store.hasActiveError
	}
	for _, record := range store.records {
		if record.UserID == userID && record.BookID == bookID && record.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (store *stubStore) InsertReservation(_ context.Context, record Reservation) error {
	if store.insertError != nil {
		return store.insertError
	}
	store.records[record.ID.String()] = record
	store.inserts = append(store.inserts, record.ID.String())
	return nil
}

func (store *stubStore) UpdateReservation(_ context.Context, record Reservation) error {
	if store.updateError != nil {
		return store.updateError
	}
	if _, ok := store.records[record.ID.String()]; !ok {
		return ErrReservationNotFound
	}
	store.records[record.ID.String()] = record
	return nil
}

func (store *stubStore) HeadOfQueue(_ context.Context, bookID BookID) (Reservation, bool, error) {
	if store.headError != nil {
		return Reservation{}, false, store.headError
	}
	var head Reservation
	found := false
	for _, record := range store.records {
		if record.BookID != bookID || record.Status != ReservationStatusQueued {
			continue
		}
		if !found || *record.QueuePosition < *head.QueuePosition {
			head = record
			found = true
		}
	}
	return head, found, nil
}

func (store *stubStore) QueuedPositions(_ context.Context, bookID BookID) ([]QueuePosition, error) {
	if store.positionsError != nil {
		return nil, store.positionsError
	}
	var positions []QueuePosition
	for _, record := range store.records {
		if record.BookID == bookID && record.Status == ReservationStatusQueued {
			positions = append(positions, *record.QueuePosition)
		}
	}
	sort.Slice(positions, func(left, right int) bool { return positions[left] < positions[right] })
	return positions, nil
}

func (store *stubStore) ShiftQueueAfter(_ context.Context, bookID BookID, vacated QueuePosition) error {
	if store.shiftError != nil {
		return store.shiftError
	}
	for id, record := range store.records {
		if record.BookID != bookID || record.Status != ReservationStatusQueued {
			continue
		}
		if *record.QueuePosition > vacated {
			shifted := *record.QueuePosition - 1
			record.QueuePosition = &shifted
			store.records[id] = record
		}
	}
	return nil
}

func (store *stubStore) ListActiveReservations(_ context.Context, userID UserID) ([]Reservation, error) {
	if store.listError != nil {
		return nil, store.listError
	}
	var records []Reservation
	for _, id := range store.inserts {
		record := store.records[id]
		if record.UserID == userID && record.IsActive() {
			records = append(records, record)
		}
	}
	sort.SliceStable(records, func(left, right int) bool {
		return records[left].ReservedAtUnixUTC > records[right].ReservedAtUnixUTC
	})
	return records, nil
}

func (store *stubStore) mustRecord(test *testing.T, reservationID ReservationID) Reservation {
	test.Helper()
	record, ok := store.records[reservationID.String()]
	if !ok {
		test.Fatalf("reservation %s not found", reservationID.String())
	}
	return record
}

func (store *stubStore) availableCopies(test *testing.T, bookID BookID) uint {
	test.Helper()
	book, ok := store.books[bookID.String()]
	if !ok {
		test.Fatalf("book %s not found", bookID.String())
	}
	return book.availableCopies
}

// sequenceIDs returns a generator producing res-1, res-2, ...
func sequenceIDs() func() string {
	var counter int
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		counter++
		return fmt.Sprintf("res-%d", counter)
	}
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	options = append([]ServiceOption{WithIDGenerator(sequenceIDs())}, options...)
	service, err := NewService(store, func() int64 { return 100 }, options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	value, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return value
}

func mustBookID(test *testing.T, raw string) BookID {
	test.Helper()
	value, err := NewBookID(raw)
	if err != nil {
		test.Fatalf("book id: %v", err)
	}
	return value
}

func mustReservationID(test *testing.T, raw string) ReservationID {
	test.Helper()
	value, err := NewReservationID(raw)
	if err != nil {
		test.Fatalf("reservation id: %v", err)
	}
	return value
}

func mustQueuePosition(test *testing.T, raw uint) QueuePosition {
	test.Helper()
	value, err := NewQueuePosition(raw)
	if err != nil {
		test.Fatalf("queue position: %v", err)
	}
	return value
}
