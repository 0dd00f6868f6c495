package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignData computes an HMAC-SHA256 signature over data and returns it
// base64 URL-encoded.
func SignData(data string, signingKey []byte) string {
	mac := hmac.New(sha256.New, signingKey)
	mac.Write([]byte(data))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

// ValidateSignedData verifies an HMAC-SHA256 signature in constant time.
func ValidateSignedData(data, signature string, signingKey []byte) bool {
	expected, err := base64.URLEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, signingKey)
	mac.Write([]byte(data))
	return hmac.Equal(mac.Sum(nil), expected)
}
