package fetchq

import "errors"

var ErrInvalidDirection = errors.New("invalid direction")
