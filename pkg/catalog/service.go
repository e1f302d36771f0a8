package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Service contains the catalog logic over a Store.
type Service struct {
	store Store
	idFn  func() string
}

// NewService wires a Service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidStoreConfig)
	}
	return &Service{store: store, idFn: uuid.NewString}, nil
}

// CreateCategory registers a new category with a unique name.
func (s *Service) CreateCategory(ctx context.Context, name string) (Category, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Category{}, fmt.Errorf("%w: empty name", ErrInvalidCategoryName)
	}
	category := Category{ID: s.idFn(), Name: trimmed}
	if err := s.store.InsertCategory(ctx, category); err != nil {
		return Category{}, err
	}
	return category, nil
}

// ListCategories returns every category.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.store.ListCategories(ctx)
}

// RenameCategory changes a category's name.
func (s *Service) RenameCategory(ctx context.Context, categoryID string, name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidCategoryName)
	}
	return s.store.UpdateCategoryName(ctx, categoryID, trimmed)
}

// DeleteCategory removes a category; books keep existing without one.
func (s *Service) DeleteCategory(ctx context.Context, categoryID string) error {
	return s.store.DeleteCategory(ctx, categoryID)
}

// CreateBook registers a book with all copies available.
func (s *Service) CreateBook(ctx context.Context, input BookInput) (Book, error) {
	if err := validateBookInput(input); err != nil {
		return Book{}, err
	}
	var book Book
	err := s.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		if input.CategoryID != "" {
			exists, err := txStore.CategoryExists(ctx, input.CategoryID)
			if err != nil {
				return err
			}
			if !exists {
				return ErrCategoryNotFound
			}
		}
		book = Book{
			ID:              s.idFn(),
			Title:           strings.TrimSpace(input.Title),
			Author:          strings.TrimSpace(input.Author),
			ISBN:            strings.TrimSpace(input.ISBN),
			CategoryID:      input.CategoryID,
			TotalCopies:     input.TotalCopies,
			AvailableCopies: input.TotalCopies,
			CoverImageURL:   input.CoverImageURL,
		}
		return txStore.InsertBook(ctx, book)
	})
	if err != nil {
		return Book{}, err
	}
	return book, nil
}

// GetBook returns one book.
func (s *Service) GetBook(ctx context.Context, bookID string) (Book, error) {
	return s.store.GetBook(ctx, bookID)
}

// ListBooks returns books matching the query.
func (s *Service) ListBooks(ctx context.Context, query Query) ([]Book, error) {
	return s.store.SearchBooks(ctx, query)
}

// UpdateBook rewrites the writable fields. AvailableCopies is rebased by
// the TotalCopies delta so copies currently held stay accounted for; a
// new total below the consumed count is rejected.
func (s *Service) UpdateBook(ctx context.Context, bookID string, input BookInput) (Book, error) {
	if err := validateBookInput(input); err != nil {
		return Book{}, err
	}
	var updated Book
	err := s.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		current, err := txStore.GetBookForUpdate(ctx, bookID)
		if err != nil {
			return err
		}
		if input.CategoryID != "" && input.CategoryID != current.CategoryID {
			exists, err := txStore.CategoryExists(ctx, input.CategoryID)
			if err != nil {
				return err
			}
			if !exists {
				return ErrCategoryNotFound
			}
		}
		consumed := current.TotalCopies - current.AvailableCopies
		if input.TotalCopies < consumed {
			return fmt.Errorf("%w: %d copies consumed", ErrCopiesConsumed, consumed)
		}
		updated = Book{
			ID:              current.ID,
			Title:           strings.TrimSpace(input.Title),
			Author:          strings.TrimSpace(input.Author),
			ISBN:            strings.TrimSpace(input.ISBN),
			CategoryID:      input.CategoryID,
			TotalCopies:     input.TotalCopies,
			AvailableCopies: input.TotalCopies - consumed,
			CoverImageURL:   input.CoverImageURL,
		}
		return txStore.UpdateBook(ctx, updated)
	})
	if err != nil {
		return Book{}, err
	}
	return updated, nil
}

// DeleteBook removes a book unless reservations are still active for it.
func (s *Service) DeleteBook(ctx context.Context, bookID string) error {
	return s.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		if _, err := txStore.GetBookForUpdate(ctx, bookID); err != nil {
			return err
		}
		active, err := txStore.CountActiveReservations(ctx, bookID)
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrBookInUse
		}
		return txStore.DeleteBook(ctx, bookID)
	})
}

func validateBookInput(input BookInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: empty title", ErrInvalidBookInput)
	}
	if strings.TrimSpace(input.Author) == "" {
		return fmt.Errorf("%w: empty author", ErrInvalidBookInput)
	}
	if input.TotalCopies == 0 {
		return fmt.Errorf("%w: total copies must be at least 1", ErrInvalidBookInput)
	}
	return nil
}
