package finalize

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// Backoff returns the wait before retrying after the given 1-based attempt:
// base·2^(attempt-1) plus up to base/2 of jitter, never more than max. The
// jitter is derived from the job id so a given job always waits the same.
func Backoff(jobID string, attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	exp := attempt - 1
	if exp < 0 {
		exp = 0
	}
	if exp > 30 {
		exp = 30
	}
	delay := base << exp
	if delay <= 0 || (max > 0 && delay > max) {
		delay = max
	}

	if half := int64(base / 2); half > 0 {
		sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", jobID, attempt)))
		delay += time.Duration(binary.BigEndian.Uint64(sum[:8]) % uint64(half))
	}
	if max > 0 && delay > max {
		delay = max
	}
	return delay
}
