package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
)

// stubStore is an in-memory Store for service tests.
type stubStore struct {
	categories         map[string]Category
	books              map[string]Book
	activeReservations map[string]int64
}

func newStubStore() *stubStore {
	return &stubStore{
		categories:         map[string]Category{},
		books:              map[string]Book{},
		activeReservations: map[string]int64{},
	}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store *stubStore) InsertCategory(_ context.Context, category Category) error {
	for _, existing := range store.categories {
		if existing.Name == category.Name {
			return ErrDuplicateCategory
		}
	}
	store.categories[category.ID] = category
	return nil
}

func (store *stubStore) ListCategories(_ context.Context) ([]Category, error) {
	listed := make([]Category, 0, len(store.categories))
	for _, category := range store.categories {
		listed = append(listed, category)
	}
	sort.Slice(listed, func(left, right int) bool { return listed[left].Name < listed[right].Name })
	return listed, nil
}

func (store *stubStore) UpdateCategoryName(_ context.Context, categoryID string, name string) error {
	category, ok := store.categories[categoryID]
	if !ok {
		return ErrCategoryNotFound
	}
	category.Name = name
	store.categories[categoryID] = category
	return nil
}

func (store *stubStore) DeleteCategory(_ context.Context, categoryID string) error {
	if _, ok := store.categories[categoryID]; !ok {
		return ErrCategoryNotFound
	}
	delete(store.categories, categoryID)
	for bookID, book := range store.books {
		if book.CategoryID == categoryID {
			book.CategoryID = ""
			store.books[bookID] = book
		}
	}
	return nil
}

func (store *stubStore) CategoryExists(_ context.Context, categoryID string) (bool, error) {
	_, ok := store.categories[categoryID]
	return ok, nil
}

func (store *stubStore) InsertBook(_ context.Context, book Book) error {
	if book.ISBN != "" {
		for _, existing := range store.books {
			if existing.ISBN == book.ISBN {
				return ErrDuplicateISBN
			}
		}
	}
	store.books[book.ID] = book
	return nil
}

func (store *stubStore) GetBook(_ context.Context, bookID string) (Book, error) {
	book, ok := store.books[bookID]
	if !ok {
		return Book{}, ErrBookNotFound
	}
	return book, nil
}

func (store *stubStore) GetBookForUpdate(ctx context.Context, bookID string) (Book, error) {
	return store.GetBook(ctx, bookID)
}

func (store *stubStore) SearchBooks(_ context.Context, query Query) ([]Book, error) {
	needle := strings.ToLower(query.Search)
	matched := make([]Book, 0, len(store.books))
	for _, book := range store.books {
		haystack := strings.ToLower(book.Title + " " + book.Author + " " + book.ISBN)
		if needle == "" || strings.Contains(haystack, needle) {
			matched = append(matched, book)
		}
	}
	sort.Slice(matched, func(left, right int) bool {
		if query.OrderBy == "author" {
			return matched[left].Author < matched[right].Author
		}
		return matched[left].Title < matched[right].Title
	})
	return matched, nil
}

func (store *stubStore) UpdateBook(_ context.Context, book Book) error {
	if _, ok := store.books[book.ID]; !ok {
		return ErrBookNotFound
	}
	store.books[book.ID] = book
	return nil
}

func (store *stubStore) DeleteBook(_ context.Context, bookID string) error {
	if _, ok := store.books[bookID]; !ok {
		return ErrBookNotFound
	}
	delete(store.books, bookID)
	return nil
}

func (store *stubStore) CountActiveReservations(_ context.Context, bookID string) (int64, error) {
	return store.activeReservations[bookID], nil
}

func mustService(test *testing.T, store Store) *Service {
	test.Helper()
	service, err := NewService(store)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func validInput() BookInput {
	return BookInput{Title: "The Go Programming Language", Author: "Donovan", ISBN: "978-0134190440", TotalCopies: 3}
}

func TestCreateBookStartsFullyAvailable(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustService(test, store)

	book, err := service.CreateBook(context.Background(), validInput())
	if err != nil {
		test.Fatalf("create book: %v", err)
	}
	if book.AvailableCopies != 3 || book.TotalCopies != 3 {
		test.Fatalf("expected all copies available, got %+v", book)
	}
	if book.ID == "" {
		test.Fatalf("expected generated id")
	}
}

func TestCreateBookRejectsUnknownCategory(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustService(test, store)

	input := validInput()
	input.CategoryID = "missing"
	if _, err := service.CreateBook(context.Background(), input); !errors.Is(err, ErrCategoryNotFound) {
		test.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestCreateBookValidation(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name   string
		mutate func(input *BookInput)
	}{
		{name: "empty title", mutate: func(input *BookInput) { input.Title = " " }},
		{name: "empty author", mutate: func(input *BookInput) { input.Author = "" }},
		{name: "zero copies", mutate: func(input *BookInput) { input.TotalCopies = 0 }},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			service := mustService(test, newStubStore())
			input := validInput()
			testCase.mutate(&input)
			if _, err := service.CreateBook(context.Background(), input); !errors.Is(err, ErrInvalidBookInput) {
				test.Fatalf("expected ErrInvalidBookInput, got %v", err)
			}
		})
	}
}

func TestUpdateBookRebasesAvailableCopies(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustService(test, store)
	book, err := service.CreateBook(context.Background(), validInput())
	if err != nil {
		test.Fatalf("create book: %v", err)
	}
	// Two copies currently held by readers.
	held := store.books[book.ID]
	held.AvailableCopies = 1
	store.books[book.ID] = held

	input := validInput()
	input.TotalCopies = 5
	updated, err := service.UpdateBook(context.Background(), book.ID, input)
	if err != nil {
		test.Fatalf("update book: %v", err)
	}
	if updated.TotalCopies != 5 || updated.AvailableCopies != 3 {
		test.Fatalf("expected 3 of 5 available after rebase, got %+v", updated)
	}
}

func TestUpdateBookRejectsTotalBelowConsumed(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustService(test, store)
	book, err := service.CreateBook(context.Background(), validInput())
	if err != nil {
		test.Fatalf("create book: %v", err)
	}
	held := store.books[book.ID]
	held.AvailableCopies = 0
	store.books[book.ID] = held

	input := validInput()
	input.TotalCopies = 2
	if _, err := service.UpdateBook(context.Background(), book.ID, input); !errors.Is(err, ErrCopiesConsumed) {
		test.Fatalf("expected ErrCopiesConsumed, got %v", err)
	}
}

func TestDeleteBookBlockedByActiveReservations(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustService(test, store)
	book, err := service.CreateBook(context.Background(), validInput())
	if err != nil {
		test.Fatalf("create book: %v", err)
	}
	store.activeReservations[book.ID] = 2

	if err := service.DeleteBook(context.Background(), book.ID); !errors.Is(err, ErrBookInUse) {
		test.Fatalf("expected ErrBookInUse, got %v", err)
	}

	store.activeReservations[book.ID] = 0
	if err := service.DeleteBook(context.Background(), book.ID); err != nil {
		test.Fatalf("delete book: %v", err)
	}
	if _, err := service.GetBook(context.Background(), book.ID); !errors.Is(err, ErrBookNotFound) {
		test.Fatalf("expected ErrBookNotFound after delete, got %v", err)
	}
}

func TestListBooksFiltersAndOrders(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustService(test, store)
	for index, seed := range []BookInput{
		{Title: "Zen of Go", Author: "Cheney", TotalCopies: 1},
		{Title: "Go in Action", Author: "Kennedy", TotalCopies: 1},
		{Title: "Rust for Rustaceans", Author: "Gjengset", TotalCopies: 1},
	} {
		seed.ISBN = fmt.Sprintf("isbn-%d", index)
		if _, err := service.CreateBook(context.Background(), seed); err != nil {
			test.Fatalf("seed book: %v", err)
		}
	}

	matched, err := service.ListBooks(context.Background(), Query{Search: "go"})
	if err != nil {
		test.Fatalf("list books: %v", err)
	}
	if len(matched) != 2 {
		test.Fatalf("expected two matches, got %d", len(matched))
	}
	if matched[0].Title != "Go in Action" || matched[1].Title != "Zen of Go" {
		test.Fatalf("expected title ordering, got %q then %q", matched[0].Title, matched[1].Title)
	}
}

func TestCategoryLifecycle(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustService(test, store)

	category, err := service.CreateCategory(context.Background(), "  Fiction  ")
	if err != nil {
		test.Fatalf("create category: %v", err)
	}
	if category.Name != "Fiction" {
		test.Fatalf("expected trimmed name, got %q", category.Name)
	}
	if _, err := service.CreateCategory(context.Background(), "Fiction"); !errors.Is(err, ErrDuplicateCategory) {
		test.Fatalf("expected ErrDuplicateCategory, got %v", err)
	}
	if _, err := service.CreateCategory(context.Background(), "   "); !errors.Is(err, ErrInvalidCategoryName) {
		test.Fatalf("expected ErrInvalidCategoryName, got %v", err)
	}

	if err := service.RenameCategory(context.Background(), category.ID, "Novels"); err != nil {
		test.Fatalf("rename category: %v", err)
	}
	listed, err := service.ListCategories(context.Background())
	if err != nil {
		test.Fatalf("list categories: %v", err)
	}
	if len(listed) != 1 || listed[0].Name != "Novels" {
		test.Fatalf("expected renamed category, got %+v", listed)
	}

	input := validInput()
	input.CategoryID = category.ID
	book, err := service.CreateBook(context.Background(), input)
	if err != nil {
		test.Fatalf("create book: %v", err)
	}
	if err := service.DeleteCategory(context.Background(), category.ID); err != nil {
		test.Fatalf("delete category: %v", err)
	}
	remaining, err := service.GetBook(context.Background(), book.ID)
	if err != nil {
		test.Fatalf("get book: %v", err)
	}
	if remaining.CategoryID != "" {
		test.Fatalf("expected book detached from deleted category, got %q", remaining.CategoryID)
	}
}
