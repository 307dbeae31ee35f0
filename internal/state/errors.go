package state

import "errors"

var ErrNotFound = errors.New("state: not found")
