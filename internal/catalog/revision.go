package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// generateRevisionID produces an opaque "rev-{unix-millis}-{suffix}"
// identifier. The 6-character suffix is lowercase
// alphanumeric; it is derived from a fresh random UUID rather than a
// hand-rolled PRNG — uuid.New()'s
// hex representation is lowercase hexadecimal, i.e. already within the
// lowercase-alphanumeric alphabet the format calls for.
func generateRevisionID(now time.Time) string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	suffix := raw[:6]
	return fmt.Sprintf("rev-%d-%s", now.UnixMilli(), suffix)
}
