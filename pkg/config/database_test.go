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

package config

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "postgres",
			cfg:  DatabaseConfig{Driver: "postgres", Host: "db", Database: "ws", Username: "app", Password: "pw"},
			want: "host=db port=5432 dbname=ws user=app password=pw sslmode=disable",
		},
		{
			name: "mysql",
			cfg:  DatabaseConfig{Driver: "mysql", Host: "db", Database: "ws", Username: "app", Password: "pw"},
			want: "app:pw@tcp(db:3306)/ws?",
		},
		{
			name: "sqlite",
			cfg:  DatabaseConfig{Driver: "sqlite", Database: "/var/lib/ws.db"},
			want: "/var/lib/ws.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.SetDefaults()
			require.NoError(t, tt.cfg.Validate())
			assert.True(t, strings.HasPrefix(tt.cfg.DSN(), tt.want), tt.cfg.DSN())
			if tt.cfg.Driver == "mysql" {
				assert.Contains(t, tt.cfg.DSN(), "parseTime=true")
			}
		})
	}
}

func TestDatabaseConfig_Dialect(t *testing.T) {
	assert.Equal(t, "sqlite", (&DatabaseConfig{Driver: "sqlite3"}).Dialect())
	assert.Equal(t, "sqlite3", (&DatabaseConfig{Driver: "sqlite"}).DriverName())
	assert.Equal(t, "postgres", (&DatabaseConfig{Driver: "postgres"}).Dialect())
}

func TestDBPool_SharesConnections(t *testing.T) {
	cfg := &DatabaseConfig{Driver: "sqlite", Database: filepath.Join(t.TempDir(), "pool.db")}
	cfg.SetDefaults()

	pool := NewDBPool()
	defer pool.Close()

	a, err := pool.Get(context.Background(), cfg)
	require.NoError(t, err)
	b, err := pool.Get(context.Background(), cfg)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, pool.Len())
	assert.Equal(t, 1, a.Stats().MaxOpenConnections)

	require.NoError(t, pool.Close())
	assert.Equal(t, 0, pool.Len())
}
