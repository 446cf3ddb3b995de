package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuery          = errors.New("invalid query")
	ErrEmbedding             = errors.New("embedding failure")
	ErrStoreUnavailable      = errors.New("knowledge store unavailable")
	ErrGenerationUnavailable = errors.New("generation unavailable")
	ErrNotAuthorized         = errors.New("not authorized")
	ErrTemporary             = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
