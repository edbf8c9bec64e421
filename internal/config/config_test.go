package config

import "testing"

// setRequiredEnv fills in every variable Load treats as mandatory.
func setRequiredEnv(t *testing.T) {
    t.Helper()
    for k, v := range map[string]string{
        "APP_ENV":              "test",
        "APP_PORT":             "8080",
        "DB_USER":              "app",
        "DB_HOST":              "localhost",
        "DB_PORT":              "3306",
        "DB_NAME":              "booking",
        "JWT_SECRET":           "secret",
        "PAYMENT_API_URL":      "https://gateway.example.com",
        "PAYMENT_CLIENT_ID":    "cid",
        "PAYMENT_API_KEY":      "key",
        "PAYMENT_CHECKSUM_KEY": "checksum",
        "PAYMENT_RETURN_URL":   "https://app.example.com/return",
        "PAYMENT_CANCEL_URL":   "https://app.example.com/cancel",
    } {
        t.Setenv(k, v)
    }
}

func TestLoadRateLimitDefaultsOn(t *testing.T) {
    setRequiredEnv(t)
    cfg := Load()
    if cfg.RateLimitPerMin != 30 {
        t.Fatalf("expected default rate limit 30/min, got %d", cfg.RateLimitPerMin)
    }
}

func TestLoadRateLimitEnabledFlagDisablesLimiter(t *testing.T) {
    setRequiredEnv(t)
    t.Setenv("RATE_LIMIT_PER_MIN", "100")
    t.Setenv("RATE_LIMIT_ENABLED", "false")
    cfg := Load()
    if cfg.RateLimitPerMin != 0 {
        t.Fatalf("RATE_LIMIT_ENABLED=false must disable the limiter, got %d/min", cfg.RateLimitPerMin)
    }
}

func TestLoadRateLimitBudgetHonoured(t *testing.T) {
    setRequiredEnv(t)
    t.Setenv("RATE_LIMIT_ENABLED", "true")
    t.Setenv("RATE_LIMIT_PER_MIN", "12")
    cfg := Load()
    if cfg.RateLimitPerMin != 12 {
        t.Fatalf("expected 12/min, got %d", cfg.RateLimitPerMin)
    }
}
