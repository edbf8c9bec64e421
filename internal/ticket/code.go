// Package ticket issues per-seat ticket codes and renders e-tickets.
package ticket

import (
    "crypto/rand"
    "fmt"
)

// codeAlphabet deliberately omits 0/O and 1/I so codes survive being
// read over the phone at a boarding gate.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// codeLength gives 32^10 ≈ 10^15 possibilities, plenty for a code
// that is scoped to one booking seat and checked against the ledger.
const codeLength = 10

// NewCode generates one ticket code from cryptographically secure
// random bytes.
func NewCode() (string, error) {
    buf := make([]byte, codeLength)
    if _, err := rand.Read(buf); err != nil {
        return "", fmt.Errorf("ticket code: %w", err)
    }
    out := make([]byte, codeLength)
    for i, b := range buf {
        out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
    }
    return string(out), nil
}
