package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/aretw0/arbiter/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewWithWriter(&buf, "info", "json")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("workflow created", zap.String("workflow_id", "wf-1"))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "workflow created", entry["msg"])
	assert.Equal(t, "wf-1", entry["workflow_id"])
	assert.Equal(t, "info", entry["level"])
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewWithWriter(&buf, "debug", "console")
	require.NoError(t, err)
	logger.Debug("step started")
	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "step started")
}

func TestNewWithWriter_Invalid(t *testing.T) {
	_, err := logging.NewWithWriter(&bytes.Buffer{}, "loud", "json")
	assert.Error(t, err)
	_, err = logging.NewWithWriter(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}
