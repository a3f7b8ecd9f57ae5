package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Random token sizes, in bytes of entropy.
const (
	TokenSize128 = 16
	TokenSize256 = 32
)

// GenerateToken returns size random bytes encoded as unpadded base64url. The
// password pepper and the dummy hash used for unknown usernames come from it.
func GenerateToken(size int) (string, error) {
	if size < 1 {
		return "", fmt.Errorf("cryptox: token size %d is not positive", size)
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
