package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--env", filepath.Join(t.TempDir(), "none.env"), "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "scalper version "+version)
}

func TestConfigInitValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scalper.yaml")

	out, err := execute(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	out, err = execute(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "min R:R 1.50")
}

func TestConfigValidateRejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("risk:\n  max_spread_pips: 9\n"), 0o644))

	_, err := execute(t, "config", "validate", "-f", path)
	assert.Error(t, err)
}

func TestReplayAndJournal(t *testing.T) {
	dir := t.TempDir()
	t0 := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	var b strings.Builder
	b.WriteString("time,instrument,open,high,low,close,volume\n")
	for i := 30; i >= 0; i-- {
		fmt.Fprintf(&b, "%s,EUR_USD,1.10000,1.10040,1.09960,1.10000,100\n", t0.Add(-time.Duration(i)*time.Minute).Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "%s,EUR_USD,1.10080,1.10120,1.10070,1.10110,100\n", t0.Add(time.Minute).Format(time.RFC3339))
	candles := filepath.Join(dir, "candles.csv")
	require.NoError(t, os.WriteFile(candles, []byte(b.String()), 0o644))

	plan := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(plan, []byte(`setups:
  - time: 2024-03-04T09:00:00Z
    instrument: EUR_USD
    direction: long
    confidence: 0.7
    spread_pips: 1
`), 0o644))

	db := filepath.Join(dir, "replay.db")
	out, err := execute(t, "replay", "--candles", candles, "--plan", plan, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Win rate")
	assert.Contains(t, out, "EUR_USD")

	out, err = execute(t, "journal", "trades", "--db", db, "--day", "", "--format", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "EUR_USD")

	out, err = execute(t, "journal", "summary", "--db", db, "--format", "org")
	require.NoError(t, err)
	assert.Contains(t, out, "* SESSION: "+db)

	out, err = execute(t, "journal", "risk", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Trades taken:       1")
}

func TestOandaEnvFlag(t *testing.T) {
	plan := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(plan, []byte("setups: []\n"), 0o644))

	tests := []struct {
		name string
		args []string
	}{
		{"paper", []string{"paper", "--plan", plan, "--oanda-env", "staging"}},
		{"data", []string{"data", "candles", "--token", "x", "--oanda-env", "demo",
			"--from", "2024-03-04T00:00:00Z", "--to", "2024-03-05T00:00:00Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "unknown --oanda-env")
		})
	}
}

func TestEnvFlagLoadsDotenvOnDataCommands(t *testing.T) {
	t.Setenv("OANDA_TOKEN", "")
	require.NoError(t, os.Unsetenv("OANDA_TOKEN"))

	envPath := filepath.Join(t.TempDir(), "custom.env")
	require.NoError(t, os.WriteFile(envPath, []byte("OANDA_TOKEN=from-dotenv\n"), 0o644))

	// An unsupported granularity fails after the token check, so reaching
	// it proves the token came from the dotenv file.
	_, err := execute(t, "data", "candles", "--env", envPath, "--token", "", "--oanda-env", "practice",
		"--granularity", "H4", "--from", "2024-03-04T00:00:00Z", "--to", "2024-03-05T00:00:00Z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported granularity")
	assert.Equal(t, "from-dotenv", os.Getenv("OANDA_TOKEN"))
}
