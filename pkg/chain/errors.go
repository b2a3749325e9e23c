package chain

import "errors"

// ErrChainStalled names a chain head that has not advanced past a loop's
// current watermark. No Client method returns it: once the retry budget in
// retry.DefaultPolicy is exhausted, they return the last RPC error.
var ErrChainStalled = errors.New("chain head did not advance within retry budget")
