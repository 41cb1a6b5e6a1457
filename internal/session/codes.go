package session

import (
	"fmt"
	"math/rand"
)

// codeDigits fixes the shareable code width. Six digits gives a million-slot
// space; collisions among concurrently live sessions are resolved by retry.
const codeDigits = 6

// codeAttempts bounds the collision-retry loop before creation fails with
// ErrCodeSpaceExhausted.
const codeAttempts = 10

// generateCode draws a fixed-width numeric code uniformly over the full
// digit space, leading zeros included.
func generateCode(rng *rand.Rand) string {
	return fmt.Sprintf("%0*d", codeDigits, rng.Intn(1_000_000))
}
