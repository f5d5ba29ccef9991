package id

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var fallbackSeq atomic.Uint64

// New returns a random request id. If the system entropy source fails it
// falls back to a time and sequence based id that is still unique within the
// process.
func New() string {
	u, err := uuid.NewRandom()
	if err != nil {
		return "req-" + strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + strconv.FormatUint(fallbackSeq.Add(1), 36)
	}
	return u.String()
}
