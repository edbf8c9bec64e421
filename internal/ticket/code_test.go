package ticket

import (
    "strings"
    "testing"
)

func TestNewCodeShapeAndAlphabet(t *testing.T) {
    for i := 0; i < 50; i++ {
        code, err := NewCode()
        if err != nil {
            t.Fatalf("NewCode: %v", err)
        }
        if len(code) != codeLength {
            t.Fatalf("code %q has length %d, want %d", code, len(code), codeLength)
        }
        for _, c := range code {
            if !strings.ContainsRune(codeAlphabet, c) {
                t.Fatalf("code %q contains %q outside the alphabet", code, c)
            }
        }
        for _, banned := range "0O1I" {
            if strings.ContainsRune(code, banned) {
                t.Fatalf("code %q contains ambiguous character %q", code, banned)
            }
        }
    }
}
