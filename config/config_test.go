package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MPESA_TIMEOUT", "")
	t.Setenv("MPESA_CONSUMER_KEY", "")
	t.Setenv("APP_ENV", "")
	cfg := Load()
	assert.Equal(t, 30*time.Second, cfg.Mpesa.Timeout)
	assert.Equal(t, "174379", cfg.Mpesa.ShortCode)
	assert.Empty(t, cfg.Mpesa.ConsumerKey)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("MPESA_TIMEOUT", "12s")
	t.Setenv("MPESA_CONSUMER_KEY", "ck")
	t.Setenv("RATE_LIMIT", "7")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")
	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 12*time.Second, cfg.Mpesa.Timeout)
	assert.Equal(t, "ck", cfg.Mpesa.ConsumerKey)
	assert.Equal(t, 7, cfg.Server.RateLimit)
	assert.Equal(t, 100, cfg.Database.MaxOpenConns)
}

func TestSignedCallbackURL(t *testing.T) {
	m := MpesaConfig{CallbackURL: "https://api.fundi.co.ke/api/v1/payments/callback"}
	assert.Equal(t, m.CallbackURL, m.SignedCallbackURL())

	m.CallbackToken = "s3cr3t"
	assert.Equal(t, "https://api.fundi.co.ke/api/v1/payments/callback?token=s3cr3t", m.SignedCallbackURL())
}
