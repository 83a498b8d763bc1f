package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetupLevel(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, setup(&bytes.Buffer{}, false).GetLevel())
	require.Equal(t, zerolog.DebugLevel, setup(&bytes.Buffer{}, true).GetLevel())
}

func TestRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		handler gin.HandlerFunc
		status  int
		level   string
		err     string
	}{
		{
			name:    "success",
			handler: func(c *gin.Context) { c.Status(http.StatusNoContent) },
			status:  http.StatusNoContent,
			level:   "info",
		},
		{
			name:    "client error",
			handler: func(c *gin.Context) { c.Status(http.StatusForbidden) },
			status:  http.StatusForbidden,
			level:   "warn",
		},
		{
			name: "server error",
			handler: func(c *gin.Context) {
				_ = c.Error(errors.New("boom"))
				c.Status(http.StatusInternalServerError)
			},
			status: http.StatusInternalServerError,
			level:  "error",
			err:    "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			r := gin.New()
			r.Use(Requests(zerolog.New(&buf)))
			r.GET("/api/employees", func(c *gin.Context) {
				require.NotNil(t, zerolog.Ctx(c.Request.Context()))
				tt.handler(c)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/employees", nil))
			require.Equal(t, tt.status, w.Code)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			require.Equal(t, tt.level, entry["level"])
			require.Equal(t, "GET", entry["method"])
			require.Equal(t, "/api/employees", entry["path"])
			require.InDelta(t, float64(tt.status), entry["status"], 0)
			if tt.err != "" {
				require.Equal(t, tt.err, entry["error"])
			}
		})
	}
}
