package merkle

import "errors"

var (
	ErrEmptyTree       = errors.New("tree is empty")
	ErrInvalidProof    = errors.New("invalid merkle proof")
	ErrLeafNotFound    = errors.New("leaf not found")
	ErrInvalidLeafHash = errors.New("invalid leaf hash length")
	ErrInvalidBitPath  = errors.New("invalid bit path encoding")
	ErrTreeFull        = errors.New("tree is at maximum capacity for its height")
)
