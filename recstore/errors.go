package recstore

import "errors"

var (
	ErrStoreRead  = errors.New("recstore: read failed")
	ErrStoreWrite = errors.New("recstore: write failed")
	ErrNoPath     = errors.New("recstore: cache and history paths are required")
	ErrBadHorizon = errors.New("recstore: negative horizon")
)
