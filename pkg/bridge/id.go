package bridge

import (
	"math/rand"
	"strconv"
	"time"
)

// NewRequestID generates a correlation id for one capability call: unix
// milliseconds plus a random base36 suffix, unique within a content surface's
// lifetime. The format matches what the injected runtime has always produced,
// so native-side logs line up across shell versions.
func NewRequestID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + strconv.FormatInt(rand.Int63n(1<<40), 36)
}
