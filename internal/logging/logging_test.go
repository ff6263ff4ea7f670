package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/hub-acl-manager/internal/config"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("sync finished", "hub", "VPN", "rules", 6)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sync finished", entry["msg"])
	assert.Equal(t, "VPN", entry["hub"])
	assert.Equal(t, float64(6), entry["rules"])
	assert.Contains(t, entry, "time")
}

func TestNew_InvalidConfig(t *testing.T) {
	var buf bytes.Buffer

	_, err := New(&buf, config.LogConfig{Level: "loud", Format: "text"})
	assert.Error(t, err)

	_, err = New(&buf, config.LogConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
