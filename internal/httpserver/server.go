package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/menaback-dev/Library-reservation-and-catalog-system/pkg/catalog"
	"github.com/menaback-dev/Library-reservation-and-catalog-system/pkg/reservation"
)

// reservationService is the queue-manager surface the handlers call.
type reservationService interface {
	Create(ctx context.Context, userID reservation.UserID, bookID reservation.BookID) (reservation.Reservation, error)
	Cancel(ctx context.Context, reservationID reservation.ReservationID, requestingUserID reservation.UserID) error
	List(ctx context.Context, userID reservation.UserID) ([]reservation.Reservation, error)
}

// catalogService is the catalog surface the handlers call.
type catalogService interface {
	CreateCategory(ctx context.Context, name string) (catalog.Category, error)
	ListCategories(ctx context.Context) ([]catalog.Category, error)
	RenameCategory(ctx context.Context, categoryID string, name string) error
	DeleteCategory(ctx context.Context, categoryID string) error
	CreateBook(ctx context.Context, input catalog.BookInput) (catalog.Book, error)
	GetBook(ctx context.Context, bookID string) (catalog.Book, error)
	ListBooks(ctx context.Context, query catalog.Query) ([]catalog.Book, error)
	UpdateBook(ctx context.Context, bookID string, input catalog.BookInput) (catalog.Book, error)
	DeleteBook(ctx context.Context, bookID string) error
}

// Dependencies carries the wired services.
type Dependencies struct {
	Reservations reservationService
	Catalog      catalogService
	Logger       *zap.Logger
}

// Run boots the HTTP API using the supplied configuration and blocks
// until ctx is cancelled or the server fails.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := &httpHandler{
		logger:       logger,
		reservations: deps.Reservations,
		catalog:      deps.Catalog,
		cfg:          cfg,
	}
	router := setupRouter(cfg, handler)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("library api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(authMiddleware([]byte(cfg.AuthSigningKey), cfg.AuthIssuer))

	api.GET("/reservations", handler.handleListReservations)
	api.POST("/reservations", handler.handleCreateReservation)
	api.POST("/reservations/:id/cancel", handler.handleCancelReservation)

	api.GET("/books", handler.handleListBooks)
	api.GET("/books/:id", handler.handleGetBook)
	api.GET("/categories", handler.handleListCategories)

	admin := api.Group("")
	admin.Use(requireAdmin())
	admin.POST("/books", handler.handleCreateBook)
	admin.PUT("/books/:id", handler.handleUpdateBook)
	admin.DELETE("/books/:id", handler.handleDeleteBook)
	admin.POST("/categories", handler.handleCreateCategory)
	admin.PUT("/categories/:id", handler.handleRenameCategory)
	admin.DELETE("/categories/:id", handler.handleDeleteCategory)

	return router
}
