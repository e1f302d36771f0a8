// Package oplog adapts zap to the reservation OperationLogger callback.
package oplog

import (
	"context"

	"go.uber.org/zap"

	"github.com/menaback-dev/Library-reservation-and-catalog-system/pkg/reservation"
)

// ZapLogger emits one structured log line per reservation operation.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger wraps a zap logger.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: logger}
}

// LogOperation implements reservation.OperationLogger.
func (adapter *ZapLogger) LogOperation(_ context.Context, entry reservation.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
		zap.String("user_id", entry.UserID.String()),
		zap.String("book_id", entry.BookID.String()),
		zap.String("reservation_id", entry.ReservationID.String()),
	}
	if entry.Error != nil {
		adapter.logger.Warn("reservation operation", append(fields, zap.Error(entry.Error))...)
		return
	}
	adapter.logger.Info("reservation operation", fields...)
}
