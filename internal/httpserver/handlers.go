package httpserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/menaback-dev/Library-reservation-and-catalog-system/pkg/catalog"
	"github.com/menaback-dev/Library-reservation-and-catalog-system/pkg/reservation"
)

type httpHandler struct {
	logger       *zap.Logger
	reservations reservationService
	catalog      catalogService
	cfg          Config
}

func (handler *httpHandler) handleCreateReservation(ctx *gin.Context) {
	principal, ok := getPrincipal(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing principal"))
		return
	}
	var request reserveRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "book_id is required"))
		return
	}
	userID, err := reservation.NewUserID(principal.UserID)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid principal"))
		return
	}
	bookID, err := reservation.NewBookID(request.BookID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "invalid book_id"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	record, err := handler.reservations.Create(requestCtx, userID, bookID)
	if err != nil {
		handler.respondReservationError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, handler.reservationPayload(requestCtx, record))
}

func (handler *httpHandler) handleCancelReservation(ctx *gin.Context) {
	principal, ok := getPrincipal(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing principal"))
		return
	}
	userID, err := reservation.NewUserID(principal.UserID)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid principal"))
		return
	}
	reservationID, err := reservation.NewReservationID(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "invalid reservation id"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	if err := handler.reservations.Cancel(requestCtx, reservationID, userID); err != nil {
		handler.respondReservationError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"detail": "reservation cancelled"})
}

func (handler *httpHandler) handleListReservations(ctx *gin.Context) {
	principal, ok := getPrincipal(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing principal"))
		return
	}
	userID, err := reservation.NewUserID(principal.UserID)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid principal"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	records, err := handler.reservations.List(requestCtx, userID)
	if err != nil {
		handler.respondReservationError(ctx, err)
		return
	}
	payloads := make([]reservationResponse, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, handler.reservationPayload(requestCtx, record))
	}
	ctx.JSON(http.StatusOK, gin.H{"reservations": payloads})
}

// reservationPayload denormalizes the book summary into the response.
// A catalog miss (book deleted after listing) degrades to an id-only
// summary rather than failing the whole request.
func (handler *httpHandler) reservationPayload(ctx context.Context, record reservation.Reservation) reservationResponse {
	summary := bookResponse{ID: record.BookID.String()}
	book, err := handler.catalog.GetBook(ctx, record.BookID.String())
	if err != nil {
		handler.logger.Warn("book summary lookup failed",
			zap.String("book_id", record.BookID.String()),
			zap.Error(err))
	} else {
		summary = bookPayload(book)
	}
	return newReservationResponse(record, summary)
}

func (handler *httpHandler) handleListBooks(ctx *gin.Context) {
	query := catalog.Query{
		Search:  ctx.Query("search"),
		OrderBy: ctx.Query("order"),
	}
	books, err := handler.catalog.ListBooks(ctx.Request.Context(), query)
	if err != nil {
		handler.respondCatalogError(ctx, err)
		return
	}
	payloads := make([]bookResponse, 0, len(books))
	for _, book := range books {
		payloads = append(payloads, bookPayload(book))
	}
	ctx.JSON(http.StatusOK, gin.H{"books": payloads})
}

func (handler *httpHandler) handleGetBook(ctx *gin.Context) {
	book, err := handler.catalog.GetBook(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		handler.respondCatalogError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, bookPayload(book))
}

func (handler *httpHandler) handleCreateBook(ctx *gin.Context) {
	var request bookRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	book, err := handler.catalog.CreateBook(ctx.Request.Context(), request.toInput())
	if err != nil {
		handler.respondCatalogError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, bookPayload(book))
}

func (handler *httpHandler) handleUpdateBook(ctx *gin.Context) {
	var request bookRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	book, err := handler.catalog.UpdateBook(ctx.Request.Context(), ctx.Param("id"), request.toInput())
	if err != nil {
		handler.respondCatalogError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, bookPayload(book))
}

func (handler *httpHandler) handleDeleteBook(ctx *gin.Context) {
	if err := handler.catalog.DeleteBook(ctx.Request.Context(), ctx.Param("id")); err != nil {
		handler.respondCatalogError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleListCategories(ctx *gin.Context) {
	categories, err := handler.catalog.ListCategories(ctx.Request.Context())
	if err != nil {
		handler.respondCatalogError(ctx, err)
		return
	}
	payloads := make([]categoryResponse, 0, len(categories))
	for _, category := range categories {
		payloads = append(payloads, categoryResponse{ID: category.ID, Name: category.Name})
	}
	ctx.JSON(http.StatusOK, gin.H{"categories": payloads})
}

func (handler *httpHandler) handleCreateCategory(ctx *gin.Context) {
	var request categoryRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "name is required"))
		return
	}
	category, err := handler.catalog.CreateCategory(ctx.Request.Context(), request.Name)
	if err != nil {
		handler.respondCatalogError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, categoryResponse{ID: category.ID, Name: category.Name})
}

func (handler *httpHandler) handleRenameCategory(ctx *gin.Context) {
	var request categoryRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "name is required"))
		return
	}
	if err := handler.catalog.RenameCategory(ctx.Request.Context(), ctx.Param("id"), request.Name); err != nil {
		handler.respondCatalogError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleDeleteCategory(ctx *gin.Context) {
	if err := handler.catalog.DeleteCategory(ctx.Request.Context(), ctx.Param("id")); err != nil {
		handler.respondCatalogError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) respondReservationError(ctx *gin.Context, err error) {
	status, code := mapReservationError(err)
	if status >= http.StatusInternalServerError {
		handler.logger.Error("reservation operation failed", zap.Error(err))
	}
	ctx.JSON(status, errorResponse(code, err.Error()))
}

func (handler *httpHandler) respondCatalogError(ctx *gin.Context, err error) {
	status, code := mapCatalogError(err)
	if status >= http.StatusInternalServerError {
		handler.logger.Error("catalog operation failed", zap.Error(err))
	}
	ctx.JSON(status, errorResponse(code, err.Error()))
}
