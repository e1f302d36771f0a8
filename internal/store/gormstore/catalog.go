package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/menaback-dev/Library-reservation-and-catalog-system/pkg/catalog"
)

// Catalog implements catalog.Store using GORM.
type Catalog struct {
	db *gorm.DB
}

// NewCatalog returns a Catalog store backed by gorm.DB.
func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// WithTx executes fn within a transaction.
func (store *Catalog) WithTx(ctx context.Context, fn func(ctx context.Context, txStore catalog.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Catalog{db: transaction})
	})
}

func (store *Catalog) InsertCategory(ctx context.Context, record catalog.Category) error {
	model := Category{CategoryID: record.ID, Name: record.Name}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return catalog.ErrDuplicateCategory
	}
	return err
}

func (store *Catalog) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	var rows []Category
	if err := store.db.WithContext(ctx).Order("name asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]catalog.Category, 0, len(rows))
	for _, row := range rows {
		records = append(records, catalog.Category{ID: row.CategoryID, Name: row.Name})
	}
	return records, nil
}

func (store *Catalog) UpdateCategoryName(ctx context.Context, categoryID string, name string) error {
	result := store.db.WithContext(ctx).
		Model(&Category{}).
		Where("category_id = ?", categoryID).
		Update("name", name)
	if isUniqueViolation(result.Error) {
		return catalog.ErrDuplicateCategory
	}
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return catalog.ErrCategoryNotFound
	}
	return nil
}

func (store *Catalog) DeleteCategory(ctx context.Context, categoryID string) error {
	result := store.db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Delete(&Category{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return catalog.ErrCategoryNotFound
	}
	// Books referencing the category keep existing without one.
	return store.db.WithContext(ctx).
		Model(&Book{}).
		Where("category_id = ?", categoryID).
		Update("category_id", nil).Error
}

func (store *Catalog) CategoryExists(ctx context.Context, categoryID string) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&Category{}).
		Where("category_id = ?", categoryID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (store *Catalog) InsertBook(ctx context.Context, record catalog.Book) error {
	model := bookModel(record)
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return catalog.ErrDuplicateISBN
	}
	return err
}

func (store *Catalog) GetBook(ctx context.Context, bookID string) (catalog.Book, error) {
	var model Book
	err := store.db.WithContext(ctx).Where("book_id = ?", bookID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return catalog.Book{}, catalog.ErrBookNotFound
	}
	if err != nil {
		return catalog.Book{}, err
	}
	return bookRecord(model), nil
}

func (store *Catalog) GetBookForUpdate(ctx context.Context, bookID string) (catalog.Book, error) {
	var model Book
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("book_id = ?", bookID).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return catalog.Book{}, catalog.ErrBookNotFound
	}
	if err != nil {
		return catalog.Book{}, err
	}
	return bookRecord(model), nil
}

func (store *Catalog) SearchBooks(ctx context.Context, query catalog.Query) ([]catalog.Book, error) {
	scope := store.db.WithContext(ctx).Model(&Book{})
	if query.Search != "" {
		pattern := "%" + query.Search + "%"
		scope = scope.Where("title LIKE ? OR author LIKE ? OR isbn LIKE ?", pattern, pattern, pattern)
	}
	switch query.OrderBy {
	case "author":
		scope = scope.Order("author asc")
	default:
		scope = scope.Order("title asc")
	}
	var rows []Book
	if err := scope.Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]catalog.Book, 0, len(rows))
	for _, row := range rows {
		records = append(records, bookRecord(row))
	}
	return records, nil
}

func (store *Catalog) UpdateBook(ctx context.Context, record catalog.Book) error {
	result := store.db.WithContext(ctx).
		Model(&Book{}).
		Where("book_id = ?", record.ID).
		Updates(map[string]interface{}{
			"title":            record.Title,
			"author":           record.Author,
			"isbn":             nullableString(record.ISBN),
			"category_id":      nullableString(record.CategoryID),
			"total_copies":     record.TotalCopies,
			"available_copies": record.AvailableCopies,
			"cover_image_url":  record.CoverImageURL,
		})
	if isUniqueViolation(result.Error) {
		return catalog.ErrDuplicateISBN
	}
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return catalog.ErrBookNotFound
	}
	return nil
}

func (store *Catalog) DeleteBook(ctx context.Context, bookID string) error {
	result := store.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Delete(&Book{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return catalog.ErrBookNotFound
	}
	return nil
}

func (store *Catalog) CountActiveReservations(ctx context.Context, bookID string) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("book_id = ? AND status IN ?", bookID, activeStatuses).
		Count(&count).Error
	return count, err
}

func bookModel(record catalog.Book) Book {
	return Book{
		BookID:          record.ID,
		Title:           record.Title,
		Author:          record.Author,
		ISBN:            nullableString(record.ISBN),
		CategoryID:      nullableString(record.CategoryID),
		TotalCopies:     record.TotalCopies,
		AvailableCopies: record.AvailableCopies,
		CoverImageURL:   record.CoverImageURL,
	}
}

func bookRecord(model Book) catalog.Book {
	return catalog.Book{
		ID:              model.BookID,
		Title:           model.Title,
		Author:          model.Author,
		ISBN:            stringValue(model.ISBN),
		CategoryID:      stringValue(model.CategoryID),
		TotalCopies:     model.TotalCopies,
		AvailableCopies: model.AvailableCopies,
		CoverImageURL:   model.CoverImageURL,
	}
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
