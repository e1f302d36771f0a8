package gormstore

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/menaback-dev/Library-reservation-and-catalog-system/pkg/catalog"
	"github.com/menaback-dev/Library-reservation-and-catalog-system/pkg/reservation"
)

func openTestDB(test *testing.T) *gorm.DB {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(test.TempDir()+"/library.db"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		test.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Category{}, &Book{}, &Reservation{}); err != nil {
		test.Fatalf("migrate: %v", err)
	}
	return db
}

func seedBook(test *testing.T, db *gorm.DB, totalCopies uint, availableCopies uint) reservation.BookID {
	test.Helper()
	model := Book{
		Title:           "Seed Title",
		Author:          "Seed Author",
		TotalCopies:     totalCopies,
		AvailableCopies: availableCopies,
	}
	if err := db.Create(&model).Error; err != nil {
		test.Fatalf("seed book: %v", err)
	}
	bookID, err := reservation.NewBookID(model.BookID)
	if err != nil {
		test.Fatalf("book id: %v", err)
	}
	return bookID
}

func newReservationService(test *testing.T, db *gorm.DB) *reservation.Service {
	test.Helper()
	service, err := reservation.NewService(New(db), func() int64 { return 100 })
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustUserID(test *testing.T, raw string) reservation.UserID {
	test.Helper()
	userID, err := reservation.NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return userID
}

func TestReservationFlowAgainstSQLite(test *testing.T) {
	db := openTestDB(test)
	bookID := seedBook(test, db, 1, 1)
	service := newReservationService(test, db)
	ctx := context.Background()

	holder := mustUserID(test, "user-holder")
	held, err := service.Create(ctx, holder, bookID)
	if err != nil {
		test.Fatalf("create held: %v", err)
	}
	if held.Status != reservation.ReservationStatusReserved {
		test.Fatalf("expected reserved, got %s", held.Status)
	}

	first, err := service.Create(ctx, mustUserID(test, "user-first"), bookID)
	if err != nil {
		test.Fatalf("create first queued: %v", err)
	}
	second, err := service.Create(ctx, mustUserID(test, "user-second"), bookID)
	if err != nil {
		test.Fatalf("create second queued: %v", err)
	}
	if first.QueuePosition.Uint() != 1 || second.QueuePosition.Uint() != 2 {
		test.Fatalf("expected queue ranks 1 and 2, got %d and %d", first.QueuePosition.Uint(), second.QueuePosition.Uint())
	}

	if _, err := service.Create(ctx, holder, bookID); !errors.Is(err, reservation.ErrDuplicateReservation) {
		test.Fatalf("expected ErrDuplicateReservation, got %v", err)
	}

	if err := service.Cancel(ctx, held.ID, holder); err != nil {
		test.Fatalf("cancel held: %v", err)
	}

	store := New(db)
	promoted, err := store.GetReservation(ctx, first.ID)
	if err != nil {
		test.Fatalf("get promoted: %v", err)
	}
	if promoted.Status != reservation.ReservationStatusReserved || promoted.QueuePosition != nil {
		test.Fatalf("expected promoted head, got %+v", promoted)
	}
	shifted, err := store.GetReservation(ctx, second.ID)
	if err != nil {
		test.Fatalf("get shifted: %v", err)
	}
	if shifted.QueuePosition == nil || shifted.QueuePosition.Uint() != 1 {
		test.Fatalf("expected shifted rank 1, got %+v", shifted)
	}

	var model Book
	if err := db.Where("book_id = ?", bookID.String()).Take(&model).Error; err != nil {
		test.Fatalf("read book row: %v", err)
	}
	if model.AvailableCopies != 0 {
		test.Fatalf("expected promoted copy consumed, got %d available", model.AvailableCopies)
	}
}

func TestCancelQueuedCompactsPositionsInSQL(test *testing.T) {
	db := openTestDB(test)
	bookID := seedBook(test, db, 1, 0)
	service := newReservationService(test, db)
	ctx := context.Background()

	var created []reservation.Reservation
	for _, raw := range []string{"user-a", "user-b", "user-c"} {
		record, err := service.Create(ctx, mustUserID(test, raw), bookID)
		if err != nil {
			test.Fatalf("create %s: %v", raw, err)
		}
		created = append(created, record)
	}

	if err := service.Cancel(ctx, created[1].ID, created[1].UserID); err != nil {
		test.Fatalf("cancel middle: %v", err)
	}

	store := New(db)
	positions, err := store.QueuedPositions(ctx, bookID)
	if err != nil {
		test.Fatalf("queued positions: %v", err)
	}
	if len(positions) != 2 || positions[0].Uint() != 1 || positions[1].Uint() != 2 {
		test.Fatalf("expected compact ranks {1,2}, got %v", positions)
	}
	tail, err := store.GetReservation(ctx, created[2].ID)
	if err != nil {
		test.Fatalf("get tail: %v", err)
	}
	if tail.QueuePosition.Uint() != 1 {
		test.Fatalf("expected tail shifted to 1, got %d", tail.QueuePosition.Uint())
	}
}

func TestGetBookForUpdateMissingBook(test *testing.T) {
	db := openTestDB(test)
	store := New(db)

	bookID, err := reservation.NewBookID("0b7faa5e-7e9e-4d3e-9a76-2f1f4f9f2f10")
	if err != nil {
		test.Fatalf("book id: %v", err)
	}
	if _, err := store.GetBookForUpdate(context.Background(), bookID); !errors.Is(err, reservation.ErrBookNotFound) {
		test.Fatalf("expected ErrBookNotFound, got %v", err)
	}
}

func TestListActiveReservationsSkipsCancelled(test *testing.T) {
	db := openTestDB(test)
	bookID := seedBook(test, db, 2, 2)
	otherBookID := seedBook(test, db, 1, 1)
	service := newReservationService(test, db)
	ctx := context.Background()
	userID := mustUserID(test, "user-a")

	kept, err := service.Create(ctx, userID, bookID)
	if err != nil {
		test.Fatalf("create kept: %v", err)
	}
	dropped, err := service.Create(ctx, userID, otherBookID)
	if err != nil {
		test.Fatalf("create dropped: %v", err)
	}
	if err := service.Cancel(ctx, dropped.ID, userID); err != nil {
		test.Fatalf("cancel dropped: %v", err)
	}

	active, err := service.List(ctx, userID)
	if err != nil {
		test.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].ID != kept.ID {
		test.Fatalf("expected only the live reservation, got %+v", active)
	}
}

func TestCatalogStoreAgainstSQLite(test *testing.T) {
	db := openTestDB(test)
	catalogStore := NewCatalog(db)
	service, err := catalog.NewService(catalogStore)
	if err != nil {
		test.Fatalf("new catalog service: %v", err)
	}
	ctx := context.Background()

	category, err := service.CreateCategory(ctx, "Programming")
	if err != nil {
		test.Fatalf("create category: %v", err)
	}
	if _, err := service.CreateCategory(ctx, "Programming"); !errors.Is(err, catalog.ErrDuplicateCategory) {
		test.Fatalf("expected ErrDuplicateCategory, got %v", err)
	}

	book, err := service.CreateBook(ctx, catalog.BookInput{
		Title:       "Learning Go",
		Author:      "Bodner",
		ISBN:        "978-1492077213",
		CategoryID:  category.ID,
		TotalCopies: 2,
	})
	if err != nil {
		test.Fatalf("create book: %v", err)
	}
	if _, err := service.CreateBook(ctx, catalog.BookInput{
		Title:       "Learning Go Again",
		Author:      "Bodner",
		ISBN:        "978-1492077213",
		TotalCopies: 1,
	}); !errors.Is(err, catalog.ErrDuplicateISBN) {
		test.Fatalf("expected ErrDuplicateISBN, got %v", err)
	}

	matched, err := service.ListBooks(ctx, catalog.Query{Search: "learning"})
	if err != nil {
		test.Fatalf("list books: %v", err)
	}
	if len(matched) != 1 || matched[0].ID != book.ID {
		test.Fatalf("expected the seeded book, got %+v", matched)
	}

	// An active reservation blocks deletion.
	reservationService := newReservationService(test, db)
	bookID, err := reservation.NewBookID(book.ID)
	if err != nil {
		test.Fatalf("book id: %v", err)
	}
	record, err := reservationService.Create(ctx, mustUserID(test, "user-a"), bookID)
	if err != nil {
		test.Fatalf("create reservation: %v", err)
	}
	if err := service.DeleteBook(ctx, book.ID); !errors.Is(err, catalog.ErrBookInUse) {
		test.Fatalf("expected ErrBookInUse, got %v", err)
	}
	if err := reservationService.Cancel(ctx, record.ID, record.UserID); err != nil {
		test.Fatalf("cancel reservation: %v", err)
	}
	if err := service.DeleteBook(ctx, book.ID); err != nil {
		test.Fatalf("delete book: %v", err)
	}

	if err := service.DeleteCategory(ctx, category.ID); err != nil {
		test.Fatalf("delete category: %v", err)
	}
	remaining, err := service.ListCategories(ctx)
	if err != nil {
		test.Fatalf("list categories: %v", err)
	}
	if len(remaining) != 0 {
		test.Fatalf("expected no categories, got %+v", remaining)
	}
}
