package coordinator

import (
	"crypto/rand"
	"math/big"
)

const DefaultRoomCodeLength = 7

// GenerateCode returns a random room code drawn from a URL-safe alphabet
// without look-alike characters.
func GenerateCode(length int) (string, error) {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	code := make([]byte, length)
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}
