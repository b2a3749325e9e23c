package forest

import "errors"

// ErrDuplicateOrOutOfRangeKey is returned when Insert is asked for a key
// that already exists (no low leaf strictly precedes it) or that falls
// outside the current sorted range.
var ErrDuplicateOrOutOfRangeKey = errors.New("duplicate or out-of-range indexed-tree key")
