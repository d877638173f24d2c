package repository

import "errors"

// ErrPersistence marks a write the ledger refused: unknown booking or a
// merchant request id that was already recorded.
var ErrPersistence = errors.New("persistence error")
