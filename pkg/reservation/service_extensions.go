package reservation

import "context"

// List returns the caller's active reservations, newest first. The
// result is a snapshot, not a live view.
func (service *Service) List(ctx context.Context, userID UserID) ([]Reservation, error) {
	records, err := service.store.ListActiveReservations(ctx, userID)
	service.logOperation(ctx, OperationLog{
		Operation: operationList,
		UserID:    userID,
		Error:     err,
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
