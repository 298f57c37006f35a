package domain

import "errors"

var (
	ErrTrainNotFound        = errors.New("train not found")
	ErrInvalidSeatCount     = errors.New("invalid seat count")
	ErrInsufficientCapacity = errors.New("not enough seats available")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrReservationNotFound  = errors.New("booking not found")
	ErrDuplicateRequest     = errors.New("duplicate request")
	ErrInvalidTrain         = errors.New("invalid train")
)

// IsCallerError reports whether err is a failure the caller can correct by
// changing the request. Such failures are never retried by the service.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrTrainNotFound) ||
		errors.Is(err, ErrInvalidSeatCount) ||
		errors.Is(err, ErrInsufficientCapacity) ||
		errors.Is(err, ErrReservationNotFound) ||
		errors.Is(err, ErrDuplicateRequest) ||
		errors.Is(err, ErrInvalidTrain)
}
