package admin

import (
	"errors"
)

var ErrEventNotFound = errors.New("event not found")
