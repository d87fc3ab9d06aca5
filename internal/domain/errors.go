package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrBroadcastUnavailable = errors.New("broadcast unavailable")
)

var (
	ErrNameEmpty            = fmt.Errorf("%w: name empty", ErrInvalidInput)
	ErrConnectionIDEmpty    = fmt.Errorf("%w: connection id empty", ErrInvalidInput)
	ErrPlayerNumberMissing  = fmt.Errorf("%w: player number missing", ErrInvalidInput)
	ErrCoordinateOutOfRange = fmt.Errorf("%w: coordinate out of range", ErrInvalidInput)
)
