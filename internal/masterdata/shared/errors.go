package shared

import (
	"errors"

	internalShared "github.com/meridian-erp/meridian/internal/shared"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrDuplicate     = errors.New("duplicate entry")
	ErrValidation    = errors.New("validation failed")
	ErrInvalidID     = errors.New("invalid ID")
	ErrRequiredField = errors.New("field is required")
	ErrInUse         = errors.New("resource is referenced and cannot be deleted")
)

func init() {
	internalShared.MarkSafe(ErrNotFound, ErrDuplicate, ErrValidation, ErrInvalidID, ErrRequiredField, ErrInUse)
}
