package decoder

import (
	"fmt"

	"github.com/V4T54L/trailwatch/internal/domain"
)

// Error reports a blob that could not be decompressed or parsed at all.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes every decoder error match domain.ErrDecode.
func (e *Error) Is(target error) bool { return target == domain.ErrDecode }
