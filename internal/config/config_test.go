package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "NODE_ID", "NOTIFICATION_QUEUE", "FANOUT_LIMIT", "NOTIFICATION_MAX_TASKS", "APNS_TOPIC", "APNS_VOIP_TOPIC", "APNS_PRODUCTION"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, "NOTIFICATION_QUEUE", cfg.NotificationQueue)
	assert.Equal(t, "relay:", cfg.RelayChannelPrefix)
	assert.Equal(t, 16, cfg.FanoutLimit)
	assert.Equal(t, 5, cfg.NotificationMaxTasks)
	assert.Len(t, cfg.NodeID, 26)
	assert.False(t, cfg.APNs.Production)
	assert.Equal(t, ".voip", cfg.APNs.VoipTopic)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("NODE_ID", "node-a")
	t.Setenv("FANOUT_LIMIT", "3")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("APNS_TOPIC", "com.example.chat")
	t.Setenv("APNS_VOIP_TOPIC", "")
	t.Setenv("APNS_PRODUCTION", "TRUE")

	cfg := Load()

	assert.Equal(t, "node-a", cfg.NodeID)
	assert.Equal(t, 3, cfg.FanoutLimit)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, "com.example.chat.voip", cfg.APNs.VoipTopic)
	assert.True(t, cfg.APNs.Production)
}

func TestGetEnvInt_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("X_LIMIT", "lots")
	assert.Equal(t, 7, getEnvInt("X_LIMIT", 7))

	t.Setenv("X_LIMIT", "-1")
	assert.Equal(t, 7, getEnvInt("X_LIMIT", 7))
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("X_FLAG", "no")
	assert.False(t, getEnvBool("X_FLAG", true))

	t.Setenv("X_FLAG", "maybe")
	assert.True(t, getEnvBool("X_FLAG", true))
}
