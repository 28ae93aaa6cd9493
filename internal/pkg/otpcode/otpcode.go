package otpcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
)

// Generator produces one-time-password codes. It is an interface so services
// can swap in a fixed generator under test.
type Generator interface {
	Generate() (string, error)
}

type generator struct {
	length int
}

// New returns a Generator producing codes of the given digit length.
func New(length int) Generator {
	return &generator{length: length}
}

// Generate returns a uniformly random numeric code. The first digit is never
// zero, so a 6-digit code falls in [100000, 999999].
func (g *generator) Generate() (string, error) {
	if g.length < 1 || g.length > 18 {
		return "", fmt.Errorf("invalid code length %d", g.length)
	}
	low := int64(1)
	for i := 1; i < g.length; i++ {
		low *= 10
	}
	n, err := rand.Int(rand.Reader, big.NewInt(9*low))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return strconv.FormatInt(low+n.Int64(), 10), nil
}
