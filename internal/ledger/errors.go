package ledger

import "errors"

// ErrRetrieval wraps a window fetch that failed after all retry attempts.
// Callers distinguish exhausted retries from storage failures with errors.Is.
var ErrRetrieval = errors.New("retrieval failed")
