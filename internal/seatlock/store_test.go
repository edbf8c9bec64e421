package seatlock

import "testing"

func TestNewTokenIsUniqueEnough(t *testing.T) {
    seen := map[string]bool{}
    for i := 0; i < 100; i++ {
        tok, err := NewToken()
        if err != nil {
            t.Fatalf("NewToken: %v", err)
        }
        if len(tok) != 32 {
            t.Fatalf("token length %d, want 32 hex chars", len(tok))
        }
        if seen[tok] {
            t.Fatalf("duplicate token %s", tok)
        }
        seen[tok] = true
    }
}

func TestKeyIsScopedPerTripAndSeat(t *testing.T) {
    if got := Key(9, 11); got != "seatlock:9:11" {
        t.Fatalf("Key(9, 11) = %q", got)
    }
    if Key(9, 11) == Key(9, 12) || Key(9, 11) == Key(10, 11) {
        t.Fatal("keys must differ per trip and per seat")
    }
}

func TestNewRejectsNilClient(t *testing.T) {
    defer func() {
        if recover() == nil {
            t.Fatal("expected panic for nil redis client")
        }
    }()
    New(nil)
}
