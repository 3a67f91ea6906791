package logging_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KaramelBytes/edachat-cli/internal/logging"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "edachat.log")
	l, err := logging.New(logging.Options{File: path, Level: "debug"})
	require.NoError(t, err)
	l.Info("submission finished", zap.String("outcome", "appended"))
	_ = l.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(strings.Split(string(b), "\n")[0])
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "submission finished", rec["msg"])
	assert.Equal(t, "appended", rec["outcome"])
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := logging.New(logging.Options{Level: "chatty"})
	require.Error(t, err)
}

func TestNewWithoutSinksIsNop(t *testing.T) {
	l, err := logging.New(logging.Options{})
	require.NoError(t, err)
	assert.NotNil(t, l)
	assert.NotNil(t, logging.OrNop(nil))
}
