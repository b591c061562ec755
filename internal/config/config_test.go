package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLocal() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "voicedesk"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Vapi:  VapiConfig{APIKey: "vapi-key"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_ENV is required")
	assert.Contains(t, err.Error(), "VAPI_API_KEY is required")
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "iss"
	c.Auth.JWTAudience = "aud"
	require.Error(t, c.Validate())
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	require.NoError(t, c.Validate())

	assert.Equal(t, "disable", c.DB.SSLMode)
	assert.Equal(t, "https://api.vapi.ai", c.Vapi.BaseURL)
	assert.Equal(t, 30*time.Second, c.Vapi.Timeout)
	assert.Equal(t, "52", c.Phone.DefaultCountryCode)
	assert.Equal(t, 72*time.Hour, c.Webhook.DedupTTL)
	assert.Equal(t, 500, c.Campaign.MaxRecipients)
	assert.Equal(t, 15*time.Minute, c.Auth.AccessTokenTTL)
}

func TestValidate_RejectsBadCountryCode(t *testing.T) {
	c := validLocal()
	c.Phone.DefaultCountryCode = "+52"
	require.Error(t, c.Validate())
}

func TestValidate_RefreshMustOutliveAccess(t *testing.T) {
	c := validLocal()
	c.Auth.AccessTokenTTL = time.Hour
	c.Auth.RefreshTokenTTL = time.Minute
	require.Error(t, c.Validate())
}
