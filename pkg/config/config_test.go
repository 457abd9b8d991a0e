package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
app:
  listen: 127.0.0.1:8080
  network_id: mdev
  cors_allowed_origins: ["https://wallet.example"]
db:
  url: postgres://multisig@localhost/multisig
client:
  node_url: http://localhost:57291
  timeout: 5s
`

func TestLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(sampleConfig), 0o600))

	tests := []struct {
		name    string
		path    string
		env     map[string]string
		check   func(t *testing.T, c Config)
		wantErr bool
	}{
		{
			name: "defaults",
			check: func(t *testing.T, c Config) {
				require.Equal(t, Default(), c)
			},
		},
		{
			name: "file",
			path: file,
			check: func(t *testing.T, c Config) {
				require.Equal(t, "127.0.0.1:8080", c.App.Listen)
				require.Equal(t, "mdev", c.App.NetworkID)
				require.Equal(t, []string{"https://wallet.example"}, c.App.CorsAllowedOrigins)
				require.Equal(t, "postgres://multisig@localhost/multisig", c.DB.URL)
				require.Equal(t, 5*time.Second, c.Client.Timeout)
				// untouched by the file
				require.Equal(t, "INFO", c.App.LogLevel)
				require.Equal(t, 64, c.Client.QueueSize)
			},
		},
		{
			name: "environment wins over file",
			path: file,
			env: map[string]string{
				"MULTISIG_NETWORK_ID":           "mtst",
				"MULTISIG_CLIENT_TIMEOUT":       "1m",
				"MULTISIG_CORS_ALLOWED_ORIGINS": "https://a.example,https://b.example",
				"LOG_LEVEL":                     "DEBUG",
			},
			check: func(t *testing.T, c Config) {
				require.Equal(t, "mtst", c.App.NetworkID)
				require.Equal(t, time.Minute, c.Client.Timeout)
				require.Equal(t, []string{"https://a.example", "https://b.example"}, c.App.CorsAllowedOrigins)
				require.Equal(t, "DEBUG", c.App.LogLevel)
				require.Equal(t, "127.0.0.1:8080", c.App.Listen)
			},
		},
		{
			name:    "missing file",
			path:    filepath.Join(t.TempDir(), "absent.yaml"),
			wantErr: true,
		},
		{
			name:    "bad duration",
			env:     map[string]string{"MULTISIG_CLIENT_TIMEOUT": "soon"},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			env:     map[string]string{"MULTISIG_CLIENT_TIMEOUT": "-1s"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			c, err := Load(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}
