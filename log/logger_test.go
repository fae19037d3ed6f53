/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Level = LevelWarn
	logger, closeFn := NewLoggerWithWriter(cfg, &buf)

	logger.Info("skipped")
	logger.With(String("store", "/tmp/cache")).Warn("trim failed", Error(errors.New("disk I/O")), Int64("removed", 5))
	logger.Error("manifest is unavailable", Path("manifest.sqlite"))
	closeFn()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, "warn", first["level"])
	require.Equal(t, "trim failed", first["msg"])
	require.Equal(t, "/tmp/cache", first["store"])
	require.Equal(t, "disk I/O", first["error"])
	require.Equal(t, 5, int(first["removed"].(float64)))
	require.Equal(t, os.Getpid(), int(first["pid"].(float64)))

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.Equal(t, "error", second["level"])
	require.Equal(t, "manifest is unavailable", second["msg"])
	require.Equal(t, "manifest.sqlite", second["path"])
}

func TestLoggerErrorNoVerbose(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.ErrorNoVerbose = true
	logger, closeFn := NewLoggerWithWriter(cfg, &buf)
	logger.Error("failed", Error(errors.New("boom")))
	closeFn()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "boom", entry["error"])
	require.NotContains(t, entry, "error"+defaultErrorVerboseSuffix)
}

func TestLoggerText(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Format = FormatText
	cfg.NoColor = true
	logger, closeFn := NewLoggerWithWriter(cfg, &buf)
	logger.Info("entry stored", Key("k1"), Tier("disk"))
	closeFn()

	require.Contains(t, buf.String(), "entry stored")
	require.Contains(t, buf.String(), "k1")
}

func TestDisabledLogger(t *testing.T) {
	logger := NewDisabledLogger()
	require.NotPanics(t, func() {
		logger.With(Key("k")).WithLevel(LevelDebug).Error("dropped", Error(errors.New("boom")))
	})
}

func TestResolvePlaceholders(t *testing.T) {
	got := resolvePlaceholders("/var/log/cachekitd-{{pid}}.log")
	require.Equal(t, "/var/log/cachekitd-"+strconv.Itoa(os.Getpid())+".log", got)
}
