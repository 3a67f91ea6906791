package session

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns an opaque per-run identifier: a base36 millisecond timestamp
// and a random suffix. It is not a credential.
func NewID() string {
	return newIDAt(time.Now())
}

func newIDAt(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return strconv.FormatInt(t.UnixMilli(), 36) + "-" + suffix
}
