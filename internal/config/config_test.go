package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5001", cfg.Port)
	assert.Equal(t, ":5001", cfg.Address())
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.Equal(t, SMSProviderLog, cfg.SMSProvider)
	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.IsProduction())
	assert.NotEmpty(t, cfg.AccessTokenSecret)
	assert.NotEqual(t, cfg.AccessTokenSecret, cfg.RefreshTokenSecret)
}

func TestLoadRequiresBackendsOutsideDev(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("ACCESS_TOKEN_SECRET", "a")
	t.Setenv("REFRESH_TOKEN_SECRET", "b")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/haulr")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")

	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestLoadRejectsSharedSecret(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("ACCESS_TOKEN_SECRET", "same")
	t.Setenv("REFRESH_TOKEN_SECRET", "same")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestLoadSMSProvider(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("SMS_PROVIDER", "Twilio")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TWILIO_ACCOUNT_SID")

	t.Setenv("SMS_PROVIDER", "pigeon")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("SMS_PROVIDER", "nsq")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sms.outbound", cfg.NSQTopic)
}

func TestAddressKeepsColon(t *testing.T) {
	assert.Equal(t, ":8080", Config{Port: ":8080"}.Address())
}
