package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fastpurge/internal/config"
	"fastpurge/internal/domain"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 45000, cfg.MaxPayloadBytes)
	assert.Equal(t, 10, cfg.MaxConcurrent)
	assert.Equal(t, 10, cfg.MaxRetries)
	assert.Equal(t, 150*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, "production", cfg.DefaultNetwork)
	assert.Equal(t, "delete", cfg.DefaultPurgeType)
	assert.Equal(t, 5*time.Second, cfg.DefaultDelay)
	assert.Equal(t, "https", cfg.Scheme)
	assert.Equal(t, 443, cfg.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"tiny payload":    func(c *config.Config) { c.MaxPayloadBytes = 10 },
		"zero concurrent": func(c *config.Config) { c.MaxConcurrent = 0 },
		"zero retries":    func(c *config.Config) { c.MaxRetries = 0 },
		"zero backoff":    func(c *config.Config) { c.RetryBackoff = 0 },
		"zero delay":      func(c *config.Config) { c.DefaultDelay = 0 },
		"empty network":   func(c *config.Config) { c.DefaultNetwork = "" },
		"empty purge":     func(c *config.Config) { c.DefaultPurgeType = "" },
		"bad scheme":      func(c *config.Config) { c.Scheme = "ftp" },
		"bad port":        func(c *config.Config) { c.Port = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var cerr *domain.ConfigurationError
			assert.ErrorAs(t, err, &cerr)
		})
	}
}
