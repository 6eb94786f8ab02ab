package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ETFRotation/internal/collector"
	"ETFRotation/internal/config"
	"ETFRotation/internal/recorder"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"ETF_POOL", "MOMENTUM_WINDOW", "FEISHU_WEBHOOK", "START_DATE", "INITIAL_CASH", "REBALANCE", "POLICY",
		"BENCHMARK", "DEFENSIVE", "DATA_SOURCE", "FAILURE_POLICY", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
		"HTTPS_PROXY", "SQLITE_PATH", "REDIS_ADDR", "LOG_LEVEL", "CRON_SCHEDULE", "CONFIG_PATH",
	} {
		t.Setenv(k, "")
	}
}

func TestNewFetcher_YahooSymbols(t *testing.T) {
	c := &config.Config{}
	c.DataSource.Provider = "yahoo"
	c.DataSource.YahooSymbols = map[string]string{"518880": "GLD"}

	f, err := newFetcher(c)
	require.NoError(t, err)
	yf, ok := f.(*collector.YahooFetcher)
	require.True(t, ok)
	assert.Equal(t, "GLD", yf.SymbolMap["518880"])
}

func TestNewFetcher_Unknown(t *testing.T) {
	c := &config.Config{}
	c.DataSource.Provider = "bloomberg"
	_, err := newFetcher(c)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewRecorder(t *testing.T) {
	rec, err := newRecorder(&config.Config{})
	require.NoError(t, err)
	assert.IsType(t, &recorder.NoopRecorder{}, rec)

	c := &config.Config{}
	c.Database.SQLitePath = filepath.Join(t.TempDir(), "runs.db")
	rec, err = newRecorder(c)
	require.NoError(t, err)
	assert.IsType(t, &recorder.SQLiteRecorder{}, rec)
	require.NoError(t, rec.Close())
}

func TestHistoryCommand_OpensOnlyTheRecorder(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("ETF_POOL", "510300,518880")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "runs.db"))
	// Unreachable endpoints: building notifiers or caches here would stall or fail.
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "1")
	t.Setenv("HTTPS_PROXY", "http://127.0.0.1:1")
	t.Setenv("REDIS_ADDR", "127.0.0.1:1")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"history", "--config", filepath.Join(dir, "missing.yaml"), "--limit", "5"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "暂无运行记录", out.String())
	assert.FileExists(t, filepath.Join(dir, "runs.db"))
}
