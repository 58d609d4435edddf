package tracker

import (
	"math/rand"
	"time"
)

// newConnectionID returns the current unix time in the high 32 bits and
// random bits in the low 32. Ids are handed out but never checked again.
func newConnectionID() int64 {
	return time.Now().Unix()<<32 | int64(rand.Uint32())
}
