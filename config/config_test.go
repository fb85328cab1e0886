package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "mongo", cfg.Storage.Driver)
	assert.Equal(t, "welfare", cfg.Mongo.DB)
	assert.Equal(t, 1, cfg.FollowUp.IntervalMonths)
	assert.Equal(t, 9, cfg.FollowUp.DueHour)
	assert.Equal(t, 10*time.Second, cfg.FollowUp.HookTimeout)
	assert.True(t, cfg.FollowUp.OverdueSyncEnabled)
	assert.Empty(t, cfg.Redis.Address)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("FOLLOWUP_DUE_HOUR", "7")
	t.Setenv("FOLLOWUP_HOOK_TIMEOUT", "3s")
	t.Setenv("REDIS_ADDRESS", "127.0.0.1:6379")
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 7, cfg.FollowUp.DueHour)
	assert.Equal(t, 3*time.Second, cfg.FollowUp.HookTimeout)
	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Address)
	assert.Equal(t, 9090, cfg.Port)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"driver":   {"STORAGE_DRIVER", "sqlite"},
		"due hour": {"FOLLOWUP_DUE_HOUR", "24"},
		"interval": {"FOLLOWUP_INTERVAL_MONTHS", "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestFollowUpLocation(t *testing.T) {
	assert.Equal(t, time.Local, FollowUpConfig{}.Location())
	assert.Equal(t, time.Local, FollowUpConfig{Timezone: "Not/AZone"}.Location())
	assert.Equal(t, "UTC", FollowUpConfig{Timezone: "UTC"}.Location().String())
}
