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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/whatssound/pkg/config"
	"github.com/kadirpekel/whatssound/pkg/server"
	"github.com/kadirpekel/whatssound/pkg/throttle"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// run parses args and executes the selected command, capturing stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cli := CLI{out: &out}
	parser, err := newParser(&cli)
	require.NoError(t, err)

	ctx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}
	err = ctx.Run(&cli)
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "WhatsSound")
}

func TestFeesCmd(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		out, err := run(t, "fees", "--amount", "500")
		require.NoError(t, err)
		assert.Contains(t, out, "Fee:     0.75 EUR")
		assert.Contains(t, out, "Net:     4.25 EUR")
		assert.Contains(t, out, "Status:  valid")
	})

	t.Run("json out of bounds", func(t *testing.T) {
		out, err := run(t, "fees", "--amount", "50", "--kind", "golden-boost", "--json")
		require.NoError(t, err)

		var quote server.FeesResponse
		require.NoError(t, json.Unmarshal([]byte(out), &quote))
		assert.Equal(t, int64(50), quote.Fee)
		assert.Equal(t, int64(0), quote.Net)
		assert.False(t, quote.Valid)
		assert.Equal(t, "minimum amount is 0.99 EUR", quote.Error)
	})

	t.Run("configured policy", func(t *testing.T) {
		path := writeFile(t, "config.yaml", `
payments:
  currency: USD
  policies:
    tip:
      commission_bps: 1000
`)
		out, err := run(t, "--config", path, "fees", "--amount", "1000")
		require.NoError(t, err)
		assert.Contains(t, out, "Fee:     1.00 USD")
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := run(t, "fees", "--amount", "500", "--kind", "sticker")
		assert.Error(t, err)
	})

	t.Run("amount required", func(t *testing.T) {
		_, err := run(t, "fees")
		assert.Error(t, err)
	})
}

func TestSchemaCmd(t *testing.T) {
	out, err := run(t, "schema", "--compact")
	require.NoError(t, err)

	var schema struct {
		Title      string         `json:"title"`
		Properties map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Equal(t, "WhatsSound Configuration Schema", schema.Title)
	for _, key := range []string{"server", "auth", "throttle", "payments", "observability"} {
		assert.Contains(t, schema.Properties, key)
	}
}

func TestValidateCmd(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "name: test\n")
		out, err := run(t, "validate", path)
		require.NoError(t, err)
		assert.Contains(t, out, "valid")
	})

	t.Run("invalid json output", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "auth:\n  enabled: true\n")
		out, err := run(t, "validate", "--format", "json", path)
		assert.ErrorIs(t, err, errInvalidConfig)

		var result jsonOutput
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "load", result.Errors[0].Type)
	})

	t.Run("print config redacts secrets", func(t *testing.T) {
		path := writeFile(t, "config.yaml", `
auth:
  enabled: true
  jwt_secret: `+testSecret+`
database:
  driver: postgres
  host: db
  database: whatssound
  password: hunter2
`)
		out, err := run(t, "validate", "--print-config", "--format", "json", path)
		require.NoError(t, err)
		assert.NotContains(t, out, testSecret)
		assert.NotContains(t, out, "hunter2")
		assert.Contains(t, out, redacted)
	})
}

func TestResolveLogSettings(t *testing.T) {
	cfg := &config.LoggerConfig{Level: "warn", Format: "json", File: "cfg.log"}

	t.Run("config over default", func(t *testing.T) {
		s := resolveLogSettings("", "", "", cfg)
		assert.Equal(t, logSettings{Level: "warn", File: "cfg.log", Format: "json"}, s)
	})

	t.Run("env over config", func(t *testing.T) {
		t.Setenv(LogLevelEnvVar, "error")
		s := resolveLogSettings("", "", "", cfg)
		assert.Equal(t, "error", s.Level)
	})

	t.Run("flag over env", func(t *testing.T) {
		t.Setenv(LogLevelEnvVar, "error")
		s := resolveLogSettings("debug", "", "verbose", cfg)
		assert.Equal(t, "debug", s.Level)
		assert.Equal(t, "verbose", s.Format)
	})

	t.Run("defaults", func(t *testing.T) {
		s := resolveLogSettings("", "", "", nil)
		assert.Equal(t, logSettings{Level: "info", Format: "simple"}, s)
	})
}

func TestInitLogger_Invalid(t *testing.T) {
	_, err := initLogger(logSettings{Level: "loud", Format: "simple"})
	assert.Error(t, err)

	_, err = initLogger(logSettings{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	cfg, loader, err := loadConfig(context.Background(), &CLI{ConfigProvider: "file"})
	require.NoError(t, err)
	assert.Nil(t, loader)
	assert.Equal(t, "whatssound", cfg.Name)

	_, _, err = loadConfig(context.Background(), &CLI{ConfigProvider: "etcd"})
	assert.Error(t, err)

	_, _, err = loadConfig(context.Background(), &CLI{ConfigProvider: "redis", Config: "x"})
	assert.Error(t, err)
}

func TestNewApp_Memory(t *testing.T) {
	cfg := config.Default()
	cfg.Observability.Metrics.Enabled = true

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.server)
	assert.NotNil(t, a.metrics)
	assert.Nil(t, a.tracer)
	assert.Equal(t, 0, a.dbPool.Len())

	d := a.throttle.Check(throttle.CategoryLogin, "u1")
	assert.True(t, d.Allowed)
}

func TestNewApp_SQLite(t *testing.T) {
	cfg := &config.Config{
		Database: &config.DatabaseConfig{
			Driver:   "sqlite",
			Database: filepath.Join(t.TempDir(), "whatssound.db"),
		},
		Payments: config.PaymentsConfig{Store: config.StoreSQL},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 1, a.dbPool.Len())
}

func TestNewApp_AuthEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Enabled = true
	cfg.Auth.JWTSecret = testSecret

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	a.Close()
}

func TestApp_Reload(t *testing.T) {
	a, err := newApp(context.Background(), config.Default())
	require.NoError(t, err)
	defer a.Close()

	one := 1
	window := 10 * time.Second
	next := config.Default()
	next.Throttle.Categories = map[string]config.RuleConfig{
		"login": {MaxRequests: &one, Window: &window},
	}
	a.reload(next)

	rule, ok := a.throttle.Rule(throttle.CategoryLogin)
	require.True(t, ok)
	assert.Equal(t, 1, rule.MaxRequests)
	assert.Equal(t, 10*time.Second, rule.Window)

	assert.True(t, a.throttle.Check(throttle.CategoryLogin, "u1").Allowed)
	assert.False(t, a.throttle.Check(throttle.CategoryLogin, "u1").Allowed)
}
