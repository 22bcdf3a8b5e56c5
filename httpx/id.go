package httpx

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// genID returns a 32-hex-character identifier derived from a random
// UUIDv4, used for RequestID/CorrelationID when the caller hasn't
// supplied one.
func genID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
