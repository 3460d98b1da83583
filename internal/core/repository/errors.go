package repository

import "errors"

// ErrNotFound is returned by updates that match no record.
var ErrNotFound = errors.New("record not found")
