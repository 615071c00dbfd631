package app

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.NewString()
}

// Alphabet without 0/O/1/I so codes survive being read out loud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

// newConfirmationCode returns a short code suitable for relaying to a
// business over the phone or in a message, e.g. "K7MQ2X".
func newConfirmationCode() string {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:codeLength])
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}
