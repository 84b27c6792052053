package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
mongo:
  uri: mongodb://localhost:27017
  database: chat
redis:
  addr: localhost:6379
  prefix: myapp
kafka:
  brokers:
    - localhost:9092
auth:
  jwt_secret: s3cret
log:
  development: true
typing:
  idle_seconds: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "chat", cfg.Mongo.Database)
	assert.Equal(t, "myapp", cfg.Redis.Prefix)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, 3*time.Second, cfg.TypingIdle)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
mongo:
  uri: mongodb://localhost:27017
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "chatapp", cfg.Mongo.Database)
	assert.Equal(t, "chat", cfg.Redis.Prefix)
	assert.Equal(t, "chat.message.sent", cfg.Kafka.TopicMessageSent)
	assert.Equal(t, 2*time.Second, cfg.TypingIdle, "typing auto-clear defaults to two seconds")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
