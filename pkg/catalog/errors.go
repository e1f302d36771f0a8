package catalog

import "errors"

// Domain-level error values returned by the catalog service.
var (
	ErrBookNotFound        = errors.New("book not found")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrDuplicateCategory   = errors.New("category name already exists")
	ErrDuplicateISBN       = errors.New("isbn already exists")
	ErrBookInUse           = errors.New("book has active reservations")
	ErrCopiesConsumed      = errors.New("total copies below consumed count")
	ErrInvalidBookInput    = errors.New("invalid book input")
	ErrInvalidCategoryName = errors.New("invalid category name")
	ErrInvalidStoreConfig  = errors.New("invalid store config")
)
