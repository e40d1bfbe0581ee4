package split

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNoActiveSplit is returned by mutations issued while no split is
	// current.
	ErrNoActiveSplit = errors.New("no active split")

	// ErrPendingSync is returned when an operation references an entity
	// that still carries a placeholder ID. The remote record may not exist
	// yet, so operations needing a confirmed remote ID must wait.
	ErrPendingSync = errors.New("entity has not finished syncing")
)

// placeholder IDs carry a reserved prefix so they can never be mistaken
// for a store-assigned ID.
const placeholderPrefix = "temp-"

// IsPlaceholder reports whether id is a locally generated temporary ID.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, placeholderPrefix)
}

func newPlaceholderID() string {
	return placeholderPrefix + uuid.New().String()
}
