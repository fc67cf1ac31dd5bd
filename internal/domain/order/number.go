package order

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"time"
)

const numberSuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewNumber builds a human-readable order number: a millisecond timestamp for
// rough ordering plus a short random suffix against same-millisecond
// collisions. Uniqueness is still enforced by the order store; callers
// regenerate on conflict.
func NewNumber(now time.Time) string {
	return "ORD-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + randomSuffix(5)
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Errorf("order: read random suffix: %w", err))
	}
	for i, b := range buf {
		buf[i] = numberSuffixAlphabet[int(b)%len(numberSuffixAlphabet)]
	}
	return string(buf)
}
