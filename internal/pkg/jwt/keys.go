package jwt

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// LoadECPrivateKeyFromPEM reads an APNs auth key (.p8) from disk.
func LoadECPrivateKeyFromPEM(path string) (*ecdsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	return ParseECPrivateKey(b)
}

// ParseECPrivateKey accepts PKCS8 ("PRIVATE KEY", the .p8 format) and
// SEC1 ("EC PRIVATE KEY") encodings.
func ParseECPrivateKey(b []byte) (*ecdsa.PrivateKey, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("failed to parse EC private key: %w", err)
	}
	return key, nil
}
