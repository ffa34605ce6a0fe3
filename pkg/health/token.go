package health

import (
	"strings"

	"github.com/google/uuid"
)

// NewToken creates a fresh ping token for the given interface. The format is
// "<interface_id>#<nonce>"; trackers treat tokens as exact-match opaque
// strings, the structure exists only for log readability.
func NewToken(interfaceID string) string {
	return interfaceID + "#" + uuid.New().String()
}

// TokenInterfaceID extracts the interface id from a token created by
// NewToken. It returns the whole token when no separator is present.
func TokenInterfaceID(token string) string {
	if i := strings.IndexByte(token, '#'); i >= 0 {
		return token[:i]
	}
	return token
}
