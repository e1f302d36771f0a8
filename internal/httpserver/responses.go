package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/menaback-dev/Library-reservation-and-catalog-system/pkg/catalog"
	"github.com/menaback-dev/Library-reservation-and-catalog-system/pkg/reservation"
)

type reserveRequest struct {
	BookID string `json:"book_id" binding:"required"`
}

type categoryRequest struct {
	Name string `json:"name" binding:"required"`
}

type bookRequest struct {
	Title         string `json:"title" binding:"required"`
	Author        string `json:"author" binding:"required"`
	ISBN          string `json:"isbn"`
	CategoryID    string `json:"category_id"`
	TotalCopies   uint   `json:"total_copies" binding:"required"`
	CoverImageURL string `json:"cover_image_url"`
}

func (request bookRequest) toInput() catalog.BookInput {
	return catalog.BookInput{
		Title:         request.Title,
		Author:        request.Author,
		ISBN:          request.ISBN,
		CategoryID:    request.CategoryID,
		TotalCopies:   request.TotalCopies,
		CoverImageURL: request.CoverImageURL,
	}
}

type categoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type bookResponse struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn,omitempty"`
	CategoryID      string `json:"category_id,omitempty"`
	TotalCopies     uint   `json:"total_copies"`
	AvailableCopies uint   `json:"available_copies"`
	CoverImageURL   string `json:"cover_image_url,omitempty"`
}

type reservationResponse struct {
	ID            string       `json:"id"`
	Book          bookResponse `json:"book"`
	ReservedAt    int64        `json:"reserved_at"`
	Status        string       `json:"status"`
	QueuePosition *uint        `json:"queue_position"`
}

func bookPayload(book catalog.Book) bookResponse {
	return bookResponse{
		ID:              book.ID,
		Title:           book.Title,
		Author:          book.Author,
		ISBN:            book.ISBN,
		CategoryID:      book.CategoryID,
		TotalCopies:     book.TotalCopies,
		AvailableCopies: book.AvailableCopies,
		CoverImageURL:   book.CoverImageURL,
	}
}

func newReservationResponse(record reservation.Reservation, book bookResponse) reservationResponse {
	var position *uint
	if record.QueuePosition != nil {
		value := record.QueuePosition.Uint()
		position = &value
	}
	return reservationResponse{
		ID:            record.ID.String(),
		Book:          book,
		ReservedAt:    record.ReservedAtUnixUTC,
		Status:        record.Status.String(),
		QueuePosition: position,
	}
}

func errorResponse(code string, message string) gin.H {
	return gin.H{"error": code, "message": message}
}

func mapReservationError(err error) (int, string) {
	switch {
	case errors.Is(err, reservation.ErrBookNotFound),
		errors.Is(err, reservation.ErrReservationNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, reservation.ErrDuplicateReservation):
		return http.StatusConflict, "duplicate_reservation"
	case errors.Is(err, reservation.ErrPermissionDenied):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, reservation.ErrReservationClosed):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, reservation.ErrInvalidUserID),
		errors.Is(err, reservation.ErrInvalidBookID),
		errors.Is(err, reservation.ErrInvalidReservationID):
		return http.StatusBadRequest, "invalid_payload"
	case reservation.IsTransient(err):
		return http.StatusServiceUnavailable, "try_again"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func mapCatalogError(err error) (int, string) {
	switch {
	case errors.Is(err, catalog.ErrBookNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, catalog.ErrDuplicateCategory),
		errors.Is(err, catalog.ErrDuplicateISBN),
		errors.Is(err, catalog.ErrBookInUse),
		errors.Is(err, catalog.ErrCopiesConsumed):
		return http.StatusConflict, "conflict"
	case errors.Is(err, catalog.ErrInvalidBookInput),
		errors.Is(err, catalog.ErrInvalidCategoryName):
		return http.StatusBadRequest, "invalid_payload"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
