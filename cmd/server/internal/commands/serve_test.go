package commands

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validServeCmd() *ServeCmd {
	return &ServeCmd{
		Listen:           "127.0.0.1:0",
		TokenSecret:      strings.Repeat("s", 32),
		TokenTTL:         time.Hour,
		HubType:          "memory",
		SubscriberBuffer: 64,
		RelayOutbox:      256,
		SampleRatio:      1,
		StoreType:        "memory",
		CORSOrigins:      []string{"http://localhost:3000"},
	}
}

func TestServeCmdValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ServeCmd)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(c *ServeCmd) {},
		},
		{
			name:    "short token secret",
			mutate:  func(c *ServeCmd) { c.TokenSecret = "short" },
			wantErr: "token secret",
		},
		{
			name: "no auth without secret",
			mutate: func(c *ServeCmd) {
				c.NoAuth = true
				c.TokenSecret = ""
			},
		},
		{
			name:    "zero token ttl",
			mutate:  func(c *ServeCmd) { c.TokenTTL = 0 },
			wantErr: "--token-ttl",
		},
		{
			name:    "zero subscriber buffer",
			mutate:  func(c *ServeCmd) { c.SubscriberBuffer = 0 },
			wantErr: "--subscriber-buffer",
		},
		{
			name:    "sample ratio above one",
			mutate:  func(c *ServeCmd) { c.SampleRatio = 1.5 },
			wantErr: "--sample-ratio",
		},
		{
			name:    "postgres without connection string",
			mutate:  func(c *ServeCmd) { c.StoreType = "postgres" },
			wantErr: "connection string is required",
		},
		{
			name: "postgres min above max",
			mutate: func(c *ServeCmd) {
				c.StoreType = "postgres"
				c.Postgres = PostgresFlags{ConnString: "postgres://localhost/payroll", MinConns: 10, MaxConns: 5}
			},
			wantErr: "--postgres-min-conns",
		},
		{
			name: "postgres ignored for memory store",
			mutate: func(c *ServeCmd) {
				c.Postgres = PostgresFlags{}
			},
		},
		{
			name:    "amqp without url",
			mutate:  func(c *ServeCmd) { c.HubType = "amqp" },
			wantErr: "AMQP URL is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validServeCmd()
			tt.mutate(c)

			err := c.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestPostgresPoolConfig(t *testing.T) {
	flags := PostgresFlags{
		ConnString:      "postgres://localhost/payroll",
		MaxConns:        8,
		MinConns:        2,
		MaxConnLifetime: 60,
		MaxConnIdleTime: 30,
		AutoMigrate:     true,
	}

	cfg := flags.poolConfig()
	require.Equal(t, "postgres://localhost/payroll", cfg.ConnString)
	require.Equal(t, int32(8), cfg.MaxConns)
	require.Equal(t, int32(2), cfg.MinConns)
	require.Equal(t, int32(60), cfg.MaxConnLifetime)
	require.Equal(t, int32(30), cfg.MaxConnIdleTime)
	require.True(t, cfg.AutoMigrate)
}

func TestHandlerCompression(t *testing.T) {
	body := strings.Repeat("payroll ", 1024)
	router := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(body))
	})

	h := validServeCmd().handler(router)

	tests := []struct {
		path     string
		encoding string
	}{
		{path: "/api/employees", encoding: "gzip"},
		{path: "/healthz", encoding: "gzip"},
		{path: "/api/events", encoding: ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("Accept-Encoding", "gzip")
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, tt.encoding, rec.Header().Get("Content-Encoding"))
			if tt.encoding == "" {
				require.Equal(t, body, rec.Body.String())
			}
		})
	}
}

func TestHandlerCORS(t *testing.T) {
	router := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := validServeCmd().handler(router)

	t.Run("allowed origin preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/employees/1", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		req.Header.Set("Access-Control-Request-Headers", "if-match")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/employees", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("exposes etag", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/employees", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
		require.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Etag")
	})
}
