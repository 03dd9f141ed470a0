package engine

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"midrev/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionLoggerWritesNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.ndjson")
	logger, err := NewDecisionLogger(path, "run-42")
	require.NoError(t, err)

	logger.Append(Decision{Symbol: "PURR/USDC", Intent: strategy.Sell, Result: "filled", OrderID: "7"})
	logger.Append(Decision{RunID: "other", Symbol: "PURR/USDC", Intent: strategy.Buy, Result: "repriced"})
	require.NoError(t, logger.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)

	assert.Equal(t, "run-42", lines[0]["run_id"])
	assert.Equal(t, "SELL", lines[0]["intent"])
	assert.Equal(t, "7", lines[0]["order_id"])
	assert.NotContains(t, lines[0], "reprice_order_id")
	assert.Equal(t, "other", lines[1]["run_id"])
	assert.Equal(t, "BUY", lines[1]["intent"])
}

func TestDecisionLoggerAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.ndjson")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))

	logger, err := NewDecisionLogger(path, "run")
	require.NoError(t, err)
	logger.Append(Decision{Result: "skipped"})
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, countLines(data))
}

func countLines(data []byte) int {
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}
