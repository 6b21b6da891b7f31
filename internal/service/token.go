package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const (
	orderNumberPrefix = "ORD-"
	orderNumberBytes  = 6
)

type TokenGenerator interface {
	Generate() (string, error)
}

type tokenGenerator struct {
	entropy io.Reader
}

// NewTokenGenerator returns a generator of order numbers backed by
// crypto/rand. A nil reader selects crypto/rand.Reader.
func NewTokenGenerator(entropy io.Reader) TokenGenerator {
	if entropy == nil {
		entropy = rand.Reader
	}
	return &tokenGenerator{entropy: entropy}
}

// Generate returns "ORD-" followed by 12 uppercase hex characters. It fails
// if the entropy source cannot fill the buffer; there is no fallback.
func (g *tokenGenerator) Generate() (string, error) {
	buf := make([]byte, orderNumberBytes)
	if _, err := io.ReadFull(g.entropy, buf); err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	return orderNumberPrefix + strings.ToUpper(hex.EncodeToString(buf)), nil
}
