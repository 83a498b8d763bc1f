package logger

import (
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func Setup(dev bool) zerolog.Logger {
	return setup(os.Stderr, dev)
}

func setup(out io.Writer, dev bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// Requests logs every HTTP request once it completes and attaches a request scoped
// logger to the request context, retrievable with zerolog.Ctx.
func Requests(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()

		ctx := logger.With().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Logger().WithContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()

		event := zerolog.Ctx(ctx).Info()
		switch {
		case status >= 500:
			event = zerolog.Ctx(ctx).Error()
		case status >= 400:
			event = zerolog.Ctx(ctx).Warn()
		}

		if last := c.Errors.Last(); last != nil {
			event = event.Err(last.Err)
		}

		event.
			Int("status", status).
			Int("size", c.Writer.Size()).
			Dur("duration", time.Since(started)).
			Msg("http request")
	}
}
