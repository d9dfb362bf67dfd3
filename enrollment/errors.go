package enrollment

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// Sentinel errors returned by the engine. Every error it returns matches exactly
// one of these with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrInviteInvalid      = errors.New("invite not valid or expired")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrStorage            = errors.New("storage error")
	ErrInvalidInput       = errors.New("invalid input")
)

// StorageError wraps a failed read or write. When it comes out of a two-sided
// update, writes that happened before Op are not rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStorage) true for every StorageError
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// lookupErr maps a FindOne failure onto NotFound or StorageError
func lookupErr(kind, id string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return storageErr("find "+kind, err)
}
