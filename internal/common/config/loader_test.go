// internal/common/config/loader_test.go
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

func TestLoadFromFile_Defaults(t *testing.T) {
	t.Setenv("VECTOR_STORE_ID", "")
	path := writeConfig(t, `
completion:
  api_key: sk-test
database:
  redis:
    address: localhost:6379
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "answer-gateway", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Completion.BaseURL)
	assert.Equal(t, DefaultStrategies(), cfg.Strategies)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 600*time.Millisecond, GetDuration(cfg.Retry.BaseDelay))
	assert.Equal(t, 700*time.Millisecond, GetDuration(cfg.Jobs.PollInterval))
	assert.Equal(t, 60*time.Second, GetDuration(cfg.Jobs.Deadline))
	assert.Equal(t, NotesBackendRedis, cfg.Notes.Backend)
	assert.Equal(t, 200, cfg.Notes.MaxItems)
	assert.Equal(t, 500, cfg.Notes.MaxLength)
	assert.Equal(t, 10, cfg.Database.Redis.PoolSize)
	assert.False(t, cfg.Completion.GroundingConfigured())
}

func TestLoadFromFile_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_GATEWAY_KEY", "sk-from-env")
	t.Setenv("VECTOR_STORE_ID", "vs_env")
	t.Setenv("ASSISTANT_ID", "")

	path := writeConfig(t, `
completion:
  api_key: ${TEST_GATEWAY_KEY}
  assistant_id: ${TEST_GATEWAY_UNSET}
  base_url: https://proxy.example/v1/
database:
  redis:
    url: redis://localhost:6379/0
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.Completion.APIKey)
	assert.Equal(t, "https://proxy.example/v1", cfg.Completion.BaseURL)
	assert.Equal(t, "vs_env", cfg.Completion.IndexID)
	assert.Empty(t, cfg.Completion.AssistantID)
	assert.True(t, cfg.Completion.GroundingConfigured())
}

func TestLoadFromFile_Strategies(t *testing.T) {
	path := writeConfig(t, `
completion:
  api_key: sk-test
  primary_model: big
  secondary_model: small
database:
  redis:
    address: localhost:6379
strategies:
  - kind: synchronous
    grounded: true
    max_attempts: 1
  - model: secondary
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Len(t, cfg.Strategies, 2)

	first, second := cfg.Strategies[0], cfg.Strategies[1]
	assert.Equal(t, "grounded-synchronous-primary", first.DisplayName())
	assert.Equal(t, "big", first.ResolveModel(cfg.Completion))
	assert.Equal(t, 1, first.MaxAttempts)
	assert.Equal(t, StrategyKindSynchronous, second.Kind)
	assert.Equal(t, "small", second.ResolveModel(cfg.Completion))
}

func TestLoadFromFile_Invalid(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("REDIS_URL", "")

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing api key",
			body: "database:\n  redis:\n    address: x:1\n",
			want: "completion.api_key",
		},
		{
			name: "grounded after ungrounded",
			body: `
completion: {api_key: k}
database: {redis: {address: "x:1"}}
strategies:
  - {grounded: false}
  - {grounded: true}
`,
			want: "follows an ungrounded strategy",
		},
		{
			name: "unknown kind",
			body: `
completion: {api_key: k}
database: {redis: {address: "x:1"}}
strategies:
  - {kind: streaming}
`,
			want: "kind",
		},
		{
			name: "redis backend without redis",
			body: "completion: {api_key: k}\n",
			want: "database.redis",
		},
		{
			name: "postgres backend without host",
			body: "completion: {api_key: k}\nnotes: {backend: postgres}\n",
			want: "database.postgres.host",
		},
		{
			name: "unknown backend",
			body: "completion: {api_key: k}\nnotes: {backend: s3}\n",
			want: "notes.backend",
		},
		{
			name: "cache without redis",
			body: "completion: {api_key: k}\nnotes: {backend: postgres}\ndatabase: {postgres: {host: h, database: d, user: u}}\ncitations: {cache_enabled: true}\n",
			want: "cache_enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStrategyConfig_DisplayName(t *testing.T) {
	assert.Equal(t, "custom", StrategyConfig{Name: "custom"}.DisplayName())
	assert.Equal(t, "ungrounded-job-based-secondary", StrategyConfig{Kind: StrategyKindJobBased, Model: ModelSecondary}.DisplayName())
	assert.Equal(t, "gpt-x", StrategyConfig{Model: "gpt-x"}.ResolveModel(CompletionConfig{PrimaryModel: "p"}))
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	dsn := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "notes", SSLMode: "disable"}.GetDSN()
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=notes sslmode=disable", dsn)
}

func TestLoadForIndexSync_SampleConfigWithoutRedis(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("VECTOR_STORE_ID", "vs_sample")
	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("REDIS_URL", "")

	sample := filepath.Join("..", "..", "..", "configs", "config.yaml")

	_, err := LoadFromFile(sample)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.redis")

	cfg, err := LoadForIndexSync(sample)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Completion.APIKey)
	assert.Equal(t, "vs_sample", cfg.Completion.IndexID)
	assert.Equal(t, 10*time.Minute, GetDuration(cfg.Index.BatchDeadline))
	assert.Equal(t, 700*time.Millisecond, GetDuration(cfg.Jobs.PollInterval))
}

func TestLoadForIndexSync_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := LoadForIndexSync(writeConfig(t, "index: {batch_deadline: 1000}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completion.api_key")
}

func TestLoadFromFile_Temperature(t *testing.T) {
	base := "database: {redis: {address: \"x:1\"}}\ncompletion:\n  api_key: k\n"

	cfg, err := LoadFromFile(writeConfig(t, base))
	require.NoError(t, err)
	require.NotNil(t, cfg.Completion.Temperature)
	assert.Equal(t, 0.2, *cfg.Completion.Temperature)

	cfg, err = LoadFromFile(writeConfig(t, base+"  temperature: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Completion.Temperature)
	assert.Equal(t, 0.0, *cfg.Completion.Temperature)
}
