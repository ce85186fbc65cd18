// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_SimpleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.LevelInfo, &buf, FormatSimple)

	l.With("component", "throttle").Info("Sweep done", "evicted", 3, "note", "two words")
	l.Debug("hidden")

	assert.Equal(t, "INFO Sweep done component=throttle evicted=3 note=\"two words\"\n", buf.String())
}

func TestNew_VerboseFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.LevelDebug, &buf, FormatVerbose)

	l.WithGroup("req").Warn("Slow", "ms", 1200)

	line := buf.String()
	assert.Contains(t, line, "WARN Slow req.ms=1200")
	assert.Regexp(t, `^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2} `, line)
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.LevelInfo, &buf, FormatJSON)

	l.Error("Payment failed", "kind", "tip")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "Payment failed", rec["msg"])
	assert.Equal(t, "tip", rec["kind"])
}

func TestInit_SetsDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	l := Init(slog.LevelInfo, &buf, "")
	assert.Same(t, l, GetLogger())

	slog.Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "INFO hello"))
}

func TestInit_PackageLevelCalls(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	Init(slog.LevelInfo, &buf, FormatSimple)

	slog.Error("Request failed", "status", 500)
	slog.Warn("Ignoring config change")
	slog.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "ERROR Request failed status=500")
	assert.Contains(t, out, "WARN Ignoring config change")
	assert.NotContains(t, out, "hidden")
}

func TestFromModule(t *testing.T) {
	assert.True(t, fromModule(0))

	var pcs [1]uintptr
	runtime.Callers(1, pcs[:])
	assert.True(t, fromModule(pcs[0]))

	fn := reflect.ValueOf(json.Marshal).Pointer()
	assert.False(t, fromModule(fn+1))
}

func TestOpenLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whatssound.log")

	f, cleanup, err := OpenLogFile(path)
	require.NoError(t, err)
	_, err = f.WriteString("line\n")
	require.NoError(t, err)
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))

	_, _, err = OpenLogFile(filepath.Join(t.TempDir(), "missing", "x.log"))
	assert.Error(t, err)
}

func TestValidFormat(t *testing.T) {
	assert.True(t, ValidFormat(""))
	assert.True(t, ValidFormat("json"))
	assert.False(t, ValidFormat("xml"))
}
