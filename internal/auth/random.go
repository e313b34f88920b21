package auth

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

const recoveryCodeCount = 10

// randomToken returns n random bytes as unpadded Base64URL.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

const recoveryAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateRecoveryCodes returns codes shaped XXXXXX-XXXXXX.
func generateRecoveryCodes(count int) ([]string, error) {
	codes := make([]string, 0, count)
	buf := make([]byte, 12)
	for i := 0; i < count; i++ {
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		var sb strings.Builder
		for j, b := range buf {
			if j == 6 {
				sb.WriteByte('-')
			}
			sb.WriteByte(recoveryAlphabet[int(b)%len(recoveryAlphabet)])
		}
		codes = append(codes, sb.String())
	}
	return codes, nil
}
