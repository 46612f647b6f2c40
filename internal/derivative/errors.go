package derivative

import "errors"

// ErrEmptyImage signals a decoded image with no pixels.
var ErrEmptyImage = errors.New("image has no pixels")
