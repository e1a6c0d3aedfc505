package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_WritesJSONToExtraSinks(t *testing.T) {
	var cw bytes.Buffer
	file := filepath.Join(t.TempDir(), "import.log")

	l := New(Options{Env: "production", File: file, CloudWatch: &cw})
	l.Info("bulk import finished", zap.Int("success", 2))
	_ = l.Sync() // stdout may not support fsync

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(cw.Bytes()), &line))
	assert.Equal(t, "bulk import finished", line["msg"])
	assert.EqualValues(t, 2, line["success"])

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"success":2`)
}

func TestInitialize_ReplacesGlobal(t *testing.T) {
	before := zap.L()
	flush := Initialize(Options{Env: "development"})
	defer flush()
	defer zap.ReplaceGlobals(before)
	assert.NotSame(t, before, zap.L())
}
