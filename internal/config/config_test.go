package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigLoader_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := NewConfigLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(50<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "openai/gpt-4.1", cfg.LLM.DefaultChatModel)
	assert.Equal(t, 1536, cfg.LLM.EmbeddingDimensions)
	assert.Equal(t, 5*time.Minute, cfg.LLM.CompletionTimeout)
	assert.Equal(t, 8000, cfg.Chat.QueryMaxChars)
	assert.Equal(t, "Asia/Bangkok", cfg.Chat.Timezone)
	assert.False(t, cfg.Chat.DuplicateBufferedMessages)
	assert.Equal(t, "memory", cfg.Ingestion.Queue)
	assert.Equal(t, 1000, cfg.Ingestion.DefaultChunkSize)
	assert.Equal(t, 200, cfg.Ingestion.DefaultOverlap)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestConfigLoader_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("AIHUB_SERVER_PORT", "9000")
	t.Setenv("AIHUB_CHAT_SERIALIZE_PER_USER", "true")
	t.Setenv("DATABASE_URL", "postgresql://test:test@db:5432/testdb")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("MINIO_ENDPOINT", "minio:9000")
	t.Setenv("PUBLIC_HOST", "https://bot.example.com")

	cfg, err := NewConfigLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.Chat.SerializePerUser)
	assert.Equal(t, "postgresql://test:test@db:5432/testdb", cfg.Database.URL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Storage.Enabled)
	assert.Equal(t, "minio:9000", cfg.Storage.Endpoint)
	assert.Equal(t, "https://bot.example.com", cfg.Chat.PublicHost)
}

func TestConfigLoader_Validation(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("AIHUB_INGESTION_QUEUE", "rabbit")

	_, err := NewConfigLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestConfigLoader_OverlapMustBeSmallerThanChunk(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("AIHUB_INGESTION_DEFAULT_OVERLAP", "1000")

	_, err := NewConfigLoader().Load()
	assert.Error(t, err)
}

func TestConfigLoader_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatbot.yaml")
	content := []byte(`
server:
  port: "7070"
ingestion:
  queue: kafka
  failure_delay: 2s
kafka:
  topic: from-file
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := NewConfigLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "kafka", cfg.Ingestion.Queue)
	assert.Equal(t, 2*time.Second, cfg.Ingestion.FailureDelay)
	assert.Equal(t, "from-file", cfg.Kafka.Topic)
}

func TestConfigLoader_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := NewConfigLoader().Load()
	assert.Error(t, err)
}

func TestConfigLoader_ReloadReplacesGlobal(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	loader := NewConfigLoader()
	_, err := loader.Load()
	require.NoError(t, err)

	loader.viper.Set("chat.public_host", "https://reloaded.example.com")
	cfg, err := loader.reload()
	require.NoError(t, err)

	assert.Equal(t, "https://reloaded.example.com", cfg.Chat.PublicHost)
	assert.Same(t, cfg, Get())
}
