package catalog

import "context"

// Category groups books.
type Category struct {
	ID   string
	Name string
}

// Book is a catalog record. AvailableCopies is owned by the reservation
// ledger; the catalog only initializes it and rebases it when an admin
// changes TotalCopies.
type Book struct {
	ID              string
	Title           string
	Author          string
	ISBN            string
	CategoryID      string
	TotalCopies     uint
	AvailableCopies uint
	CoverImageURL   string
}

// BookInput carries the writable book fields.
type BookInput struct {
	Title         string
	Author        string
	ISBN          string
	CategoryID    string
	TotalCopies   uint
	CoverImageURL string
}

// Query filters and orders a book listing.
type Query struct {
	// Search matches a substring of title, author, or ISBN.
	Search string
	// OrderBy is one of "title" or "author"; empty means title.
	OrderBy string
}

// Store is the persistence contract used by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	InsertCategory(ctx context.Context, category Category) error
	ListCategories(ctx context.Context) ([]Category, error)
	UpdateCategoryName(ctx context.Context, categoryID string, name string) error
	DeleteCategory(ctx context.Context, categoryID string) error
	CategoryExists(ctx context.Context, categoryID string) (bool, error)
	InsertBook(ctx context.Context, book Book) error
	GetBook(ctx context.Context, bookID string) (Book, error)
	GetBookForUpdate(ctx context.Context, bookID string) (Book, error)
	SearchBooks(ctx context.Context, query Query) ([]Book, error)
	UpdateBook(ctx context.Context, book Book) error
	DeleteBook(ctx context.Context, bookID string) error
	CountActiveReservations(ctx context.Context, bookID string) (int64, error)
}
