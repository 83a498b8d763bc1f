package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payroll/internal/api"
	"github.com/wolfeidau/payroll/internal/auth"
	"github.com/wolfeidau/payroll/internal/directory"
	"github.com/wolfeidau/payroll/internal/logger"
	"github.com/wolfeidau/payroll/internal/notify"
	"github.com/wolfeidau/payroll/internal/roster"
	"github.com/wolfeidau/payroll/internal/store"
	memorystore "github.com/wolfeidau/payroll/internal/store/memory"
	postgresstore "github.com/wolfeidau/payroll/internal/store/postgres"
	"github.com/wolfeidau/payroll/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const eventsPath = "/api/events"

type ServeCmd struct {
	// Server configuration
	Listen          string        `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"PAYROLL_LISTEN"`
	ShutdownTimeout time.Duration `help:"time allowed for in-flight requests on shutdown" default:"10s" env:"PAYROLL_SHUTDOWN_TIMEOUT"`
	ConnectTimeout  time.Duration `help:"how long to retry connecting to backing services" default:"30s" env:"PAYROLL_CONNECT_TIMEOUT"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"http://localhost:3000" env:"PAYROLL_CORS_ORIGINS"`

	// Authentication
	NoAuth      bool          `help:"trust the X-Principal header instead of credentials (development only)" default:"false" env:"PAYROLL_NO_AUTH"`
	TokenSecret string        `help:"HMAC secret for signing bearer tokens, at least 32 bytes" env:"PAYROLL_TOKEN_SECRET"`
	TokenTTL    time.Duration `help:"bearer token lifetime" default:"1h" env:"PAYROLL_TOKEN_TTL"`
	SeedFile    string        `help:"YAML file of owners and passwords to load on startup" type:"path" env:"PAYROLL_SEED_FILE"`

	// Roster behaviour
	AutoProvision bool `help:"create owners on first reference by an authenticated manager" default:"true" negatable:"" env:"PAYROLL_AUTO_PROVISION"`

	// Events
	HubType          string        `help:"event hub (memory, redis or amqp)" default:"memory" env:"PAYROLL_HUB_TYPE" enum:"memory,redis,amqp"`
	SubscriberBuffer int           `help:"events buffered per subscriber before dropping" default:"64" env:"PAYROLL_SUBSCRIBER_BUFFER"`
	RelayOutbox      int           `help:"events queued for the relay before dropping" default:"256" env:"PAYROLL_RELAY_OUTBOX"`
	Heartbeat        time.Duration `help:"event stream keep-alive interval" default:"15s" env:"PAYROLL_HEARTBEAT"`
	Redis            RedisFlags    `embed:"" prefix:"redis-"`
	AMQP             AMQPFlags     `embed:"" prefix:"amqp-"`

	// Telemetry
	Telemetry   bool    `help:"export metrics and traces over OTLP" default:"false" env:"PAYROLL_TELEMETRY"`
	SampleRatio float64 `help:"fraction of traces sampled" default:"1" env:"PAYROLL_TRACE_SAMPLE_RATIO"`

	// Store configuration
	StoreType string        `help:"store type (memory or postgres)" default:"memory" env:"PAYROLL_STORE_TYPE" enum:"memory,postgres"`
	Postgres  PostgresFlags `embed:"" prefix:"postgres-"`
}

// Validate is called by kong once flags are parsed.
func (c *ServeCmd) Validate() error {
	if !c.NoAuth && len(c.TokenSecret) < 32 {
		return errors.New("token secret must be at least 32 bytes (--token-secret or PAYROLL_TOKEN_SECRET) unless --no-auth is set")
	}
	if c.TokenTTL <= 0 {
		return errors.New("--token-ttl must be positive")
	}
	if c.SubscriberBuffer <= 0 || c.RelayOutbox <= 0 {
		return errors.New("--subscriber-buffer and --relay-outbox must be positive")
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return errors.New("--sample-ratio must be between 0 and 1")
	}
	if c.StoreType == "postgres" {
		if err := c.Postgres.validate(); err != nil {
			return err
		}
	}
	if c.HubType == "amqp" {
		if err := c.AMQP.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log.Logger = logger.Setup(globals.Debug)
	if !globals.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting payroll server")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Telemetry {
		log.Info().Float64("sample_ratio", c.SampleRatio).Msg("Telemetry is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "payroll",
			Version:     globals.Version,
			SampleRatio: c.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	stores, err := c.openStores(ctx)
	if err != nil {
		return err
	}
	defer stores.close()

	if c.SeedFile != "" {
		n, err := seedOwners(ctx, stores.owners, c.SeedFile)
		if err != nil {
			return err
		}
		log.Info().Int("owners", n).Str("file", c.SeedFile).Msg("Seeded owners")
	}

	broker := notify.NewBroker(notify.BrokerOptions{Buffer: c.SubscriberBuffer})
	hub, relay, closeHub, err := c.openHub(ctx, broker)
	if err != nil {
		return err
	}
	defer closeHub()

	if !c.AutoProvision {
		log.Info().Msg("Owner auto-provisioning is disabled, unknown managers cannot write")
	}
	owners := directory.New(stores.owners, directory.WithAutoProvision(c.AutoProvision))
	service := roster.New(stores.employees, owners, hub)

	cfg := api.Config{
		Roster:     service,
		Hub:        hub,
		Heartbeat:  c.Heartbeat,
		Middleware: []gin.HandlerFunc{logger.Requests(log.Logger)},
	}
	if c.NoAuth {
		log.Warn().Str("header", auth.PrincipalHeader).Msg("Authentication is disabled, principals are taken from the request header")
		cfg.Authenticator = auth.HeaderAuthenticator{}
	} else {
		tokens, err := auth.NewTokenManager(c.TokenSecret, c.TokenTTL)
		if err != nil {
			return fmt.Errorf("failed to create token manager: %w", err)
		}
		authenticator := auth.NewCredentialAuthenticator(stores.owners, tokens)
		cfg.Authenticator = authenticator
		cfg.Tokens = authenticator
	}

	srv := configureHTTPServer(c.Listen, c.handler(api.NewRouter(cfg)))

	g, gctx := errgroup.WithContext(ctx)

	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}

	g.Go(func() error {
		log.Info().Str("addr", c.Listen).Bool("auth", !c.NoAuth).Str("store", c.StoreType).Str("hub", c.HubType).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

type storeSet struct {
	owners    store.OwnerStore
	employees store.EmployeeStore
	close     func()
}

func (c *ServeCmd) openStores(ctx context.Context) (*storeSet, error) {
	switch c.StoreType {
	case "postgres":
		cfg := c.Postgres.poolConfig()
		pool, err := connectWithRetry(ctx, "postgres", c.ConnectTimeout, func() (*pgxpool.Pool, error) {
			return postgresstore.NewPool(ctx, cfg)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}

		log.Info().Bool("auto_migrate", cfg.AutoMigrate).Msg("Using PostgreSQL stores")
		return &storeSet{
			owners:    postgresstore.NewOwnerStore(pool),
			employees: postgresstore.NewEmployeeStore(pool),
			close:     pool.Close,
		}, nil
	default:
		log.Info().Msg("Using in-memory stores")
		owners := memorystore.NewOwnerStore()
		return &storeSet{
			owners:    owners,
			employees: memorystore.NewEmployeeStore(owners),
			close:     func() {},
		}, nil
	}
}

// openHub returns the hub handed to the roster and API. For redis and amqp the relay
// must be run for events to reach any subscriber.
func (c *ServeCmd) openHub(ctx context.Context, broker *notify.Broker) (notify.Hub, *notify.RelayHub, func(), error) {
	var (
		transport notify.Transport
		closer    func()
	)

	switch c.HubType {
	case "redis":
		client := c.Redis.client()
		t, err := connectWithRetry(ctx, "redis", c.ConnectTimeout, func() (*notify.RedisTransport, error) {
			return notify.NewRedisTransport(ctx, client, c.Redis.Channel)
		})
		if err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		transport = t
		closer = func() {
			if err := errors.Join(t.Close(), client.Close()); err != nil {
				log.Warn().Err(err).Msg("Failed to close redis transport")
			}
		}
		log.Info().Str("addr", c.Redis.Addr).Str("channel", c.Redis.Channel).Msg("Relaying events through redis")
	case "amqp":
		t, err := connectWithRetry(ctx, "amqp", c.ConnectTimeout, func() (*notify.AMQPTransport, error) {
			return notify.DialAMQP(c.AMQP.URL, c.AMQP.Exchange)
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
		}
		transport = t
		closer = func() {
			if err := t.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close AMQP transport")
			}
		}
		log.Info().Str("exchange", c.AMQP.Exchange).Msg("Relaying events through AMQP")
	default:
		log.Info().Int("subscriber_buffer", c.SubscriberBuffer).Msg("Using in-process event hub")
		return broker, nil, func() {}, nil
	}

	relay := notify.NewRelayHub(broker, transport, notify.RelayOptions{Outbox: c.RelayOutbox})
	return relay, relay, closer, nil
}

// handler compresses every response except the event stream, which must reach the
// client unbuffered, and applies CORS to all of it.
func (c *ServeCmd) handler(router http.Handler) http.Handler {
	compressed := gzhttp.GzipHandler(router)

	mux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == eventsPath {
			router.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})

	return withCORS(c.CORSOrigins, mux)
}

func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", "If-Match", auth.PrincipalHeader},
		ExposedHeaders: []string{"ETag", "Location"},
		// Basic credentials are sent by browsers only with this set.
		AllowCredentials: true,
	})
	return middleware.Handler(h)
}
