package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	type want struct {
		apiAddress      string
		userID          string
		authToken       string
		refreshInterval time.Duration
		requestTimeout  time.Duration
		hourlyRate      float64
	}

	tests := []struct {
		name  string
		env   map[string]string
		flags []string
		want  want
	}{
		{
			name:  "defaults",
			env:   map[string]string{},
			flags: []string{},
			want: want{
				apiAddress:      "http://localhost:8080",
				refreshInterval: 30 * time.Second,
				requestTimeout:  10 * time.Second,
				hourlyRate:      2.5,
			},
		},
		{
			name: "env only",
			env: map[string]string{
				"API_ADDRESS":      "http://backend:9999",
				"USER_ID":          "u1",
				"AUTH_TOKEN":       "tok",
				"REFRESH_INTERVAL": "45s",
				"REQUEST_TIMEOUT":  "3s",
				"HOURLY_RATE":      "4.0",
			},
			flags: []string{},
			want: want{
				apiAddress:      "http://backend:9999",
				userID:          "u1",
				authToken:       "tok",
				refreshInterval: 45 * time.Second,
				requestTimeout:  3 * time.Second,
				hourlyRate:      4.0,
			},
		},
		{
			name: "flags only",
			env:  map[string]string{},
			flags: []string{
				"-a", "http://flag:8000",
				"-u", "flag-user",
				"-t", "flag-token",
				"-i", "15s",
				"-rt", "2s",
				"-r", "3.5",
			},
			want: want{
				apiAddress:      "http://flag:8000",
				userID:          "flag-user",
				authToken:       "flag-token",
				refreshInterval: 15 * time.Second,
				requestTimeout:  2 * time.Second,
				hourlyRate:      3.5,
			},
		},
		{
			name: "env overrides flags",
			env: map[string]string{
				"API_ADDRESS": "http://env:9000",
				"USER_ID":     "env-user",
			},
			flags: []string{
				"-a", "http://flag:8000",
				"-u", "flag-user",
				"-i", "15s",
			},
			want: want{
				apiAddress:      "http://env:9000",
				userID:          "env-user",
				refreshInterval: 15 * time.Second,
				requestTimeout:  10 * time.Second,
				hourlyRate:      2.5,
			},
		},
		{
			name: "non-positive values fall back to defaults",
			env: map[string]string{
				"REFRESH_INTERVAL": "0s",
				"HOURLY_RATE":      "-1",
			},
			flags: []string{},
			want: want{
				apiAddress:      "http://localhost:8080",
				refreshInterval: 30 * time.Second,
				requestTimeout:  10 * time.Second,
				hourlyRate:      2.5,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			os.Args = append([]string{"test"}, tt.flags...)

			cfg, err := Parse()
			require.NoError(t, err)

			assert.Equal(t, tt.want.apiAddress, cfg.APIAddress)
			assert.Equal(t, tt.want.userID, cfg.UserID)
			assert.Equal(t, tt.want.authToken, cfg.AuthToken)
			assert.Equal(t, tt.want.refreshInterval, cfg.RefreshInterval)
			assert.Equal(t, tt.want.requestTimeout, cfg.RequestTimeout)
			assert.Equal(t, tt.want.hourlyRate, cfg.HourlyRate)
		})
	}
}
