package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quicklearn/quicklearn/internal/config"
	"github.com/quicklearn/quicklearn/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Driver: "sqlite"},
		Groq:  config.GroqConfig{Key: "gsk_test", BaseURL: "https://api.groq.com/openai/v1"},
	}
}

func TestInitRouterFiltersChainByConfiguredProviders(t *testing.T) {
	orig := cfg
	defer func() { cfg = orig }()
	cfg = testConfig()

	rtr := initRouter(nil)

	chain := rtr.Chain()
	require.NotEmpty(t, chain)
	for _, mc := range chain {
		assert.Equal(t, model.ProviderGroq, mc.Provider, "only groq has a key, chain must hold groq models only")
	}
}

func TestInitRouterAllProviders(t *testing.T) {
	orig := cfg
	defer func() { cfg = orig }()
	cfg = testConfig()
	cfg.OpenAI = config.OpenAIConfig{Key: "sk-test", BaseURL: "https://api.openai.com/v1"}
	cfg.Anthropic = config.AnthropicConfig{Key: "sk-ant-test"}

	rtr := initRouter(nil)

	assert.Len(t, rtr.Chain(), 14)
}

func TestInitQueueFallsBackInline(t *testing.T) {
	orig := cfg
	defer func() { cfg = orig }()
	cfg = testConfig()

	q := initQueue()
	t.Cleanup(func() { _ = q.Close() })

	require.NoError(t, q.Health())
}

func TestInitStoreSQLite(t *testing.T) {
	orig := cfg
	defer func() { cfg = orig }()
	cfg = testConfig()
	cfg.Store.DatabaseURL = filepath.Join(t.TempDir(), "env_test.db")

	ctx := context.Background()
	st, err := initStore(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Ping(ctx))
}

func TestInitStoreUnknownDriver(t *testing.T) {
	orig := cfg
	defer func() { cfg = orig }()
	cfg = testConfig()
	cfg.Store.Driver = "mysql"

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}
