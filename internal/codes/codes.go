// Package codes generates the two auction access codes: the short public
// join code and the long master-recovery code. Uniqueness against live
// auctions is advisory, so generation retries on collision.
package codes

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/draftroom/auction-backend/internal/auction"
)

// Join codes drop visually ambiguous characters (0/O, 1/I).
const joinAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const joinLength = 6

const recoveryAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
const recoveryLength = 16

// maxAttempts caps rejection sampling before giving up.
const maxAttempts = 100

// ExistsFunc reports whether a candidate code is already held by a live
// auction (as either join or recovery code).
type ExistsFunc func(code string) (bool, error)

func random(alphabet string, length int) (string, error) {
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", fmt.Errorf("codes: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

func unique(alphabet string, length int, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := random(alphabet, length)
		if err != nil {
			return "", err
		}
		inUse, err := exists(code)
		if err != nil {
			return "", fmt.Errorf("codes: checking collision: %w", err)
		}
		if !inUse {
			return code, nil
		}
	}
	return "", fmt.Errorf("codes: %d attempts: %w", maxAttempts, auction.ErrGenerationExhausted)
}

// NewJoinCode returns a fresh 6-character public join code.
func NewJoinCode(exists ExistsFunc) (string, error) {
	return unique(joinAlphabet, joinLength, exists)
}

// NewRecoveryCode returns a fresh 16-character master-recovery code.
func NewRecoveryCode(exists ExistsFunc) (string, error) {
	return unique(recoveryAlphabet, recoveryLength, exists)
}
