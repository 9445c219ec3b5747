package session

import (
	"crypto/rand"
	"fmt"
	"time"
)

// CodeLength is the length of generated join codes.
const CodeLength = 6

// codeAlphabet avoids easily-confused characters (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// Polling cadence for clients refreshing session data. Game-state polling
// is faster and lives with the game packages.
const (
	StateRefreshInterval = 2 * time.Second
	DataRefreshInterval  = 5 * time.Second
)

// NewJoinCode generates a short opaque session code.
func NewJoinCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate join code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
