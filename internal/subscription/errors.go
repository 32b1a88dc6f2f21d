package subscription

import (
	"errors"
	"fmt"
)

// ErrEncoderFinalized is returned when endpoints are added to an encoder
// whose output has already been finalized.
var ErrEncoderFinalized = errors.New("subscription encoder already finalized")

// UnsupportedFormatError reports a request for an output format the
// generator does not implement.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported subscription format %q", e.Format)
}
