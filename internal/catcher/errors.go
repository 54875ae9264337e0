package catcher

import "errors"

// Construction errors. Feeding lines never fails; every error a catcher can
// produce is reported when it is built.
var (
	ErrInvalidPattern    = errors.New("invalid pattern")
	ErrNoStart           = errors.New("catcher has no start predicate")
	ErrNoEndRule         = errors.New("catcher has no way to finish")
	ErrConflictingPolicy = errors.New("listen and muffle are mutually exclusive")
)
