// Package app builds the server's collaborators from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/iliamunaev/invoice-emission/internal/config"
	"github.com/iliamunaev/invoice-emission/internal/invoice"
	"github.com/iliamunaev/invoice-emission/internal/middleware"
	"github.com/iliamunaev/invoice-emission/internal/pipeline"
	"github.com/iliamunaev/invoice-emission/internal/service/archive"
	"github.com/iliamunaev/invoice-emission/internal/service/email"
	"github.com/iliamunaev/invoice-emission/internal/service/facturapi"
	"github.com/iliamunaev/invoice-emission/internal/service/messaging"
	"github.com/iliamunaev/invoice-emission/internal/service/pdf"
	"github.com/iliamunaev/invoice-emission/internal/service/pool"
	"github.com/iliamunaev/invoice-emission/internal/service/summary"
	"github.com/iliamunaev/invoice-emission/internal/store"
	"github.com/iliamunaev/invoice-emission/internal/telemetry"
	gqltransport "github.com/iliamunaev/invoice-emission/internal/transport/graphql"
	httptransport "github.com/iliamunaev/invoice-emission/internal/transport/http"
)

// ServiceName identifies this server in traces.
const ServiceName = "invoice-emission"

// summaryTimeout bounds the AI call so that it cannot eat the request budget.
const summaryTimeout = 20 * time.Second

// App holds the wired server.
type App struct {
	Invoices *invoice.Service
	Tracker  *pipeline.Tracker
	Slots    *pool.Pool
	Handler  http.Handler

	closers []func(context.Context) error
}

// New wires every collaborator described by cfg. On error, anything already
// opened is closed.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Tracker: &pipeline.Tracker{},
		Slots:   pool.New(cfg.MaxInFlight),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	tracer, shutdown, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, ServiceName)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdown)

	deps, err := a.buildDeps(ctx, cfg, logger, tracer)
	if err != nil {
		return nil, err
	}
	a.Invoices = invoice.New(deps)

	resolver := gqltransport.NewResolver(a.Invoices, gqltransport.Options{
		Slots:          a.Slots,
		RequestTimeout: cfg.RequestTimeout,
		IsNotFound:     invoice.IsNotFound,
		Logger:         logger,
	})
	schema, err := gqltransport.NewSchema(resolver)
	if err != nil {
		return nil, fmt.Errorf("graphql schema: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), max(cfg.RateLimitBurst, 1))
	}

	mux := httptransport.Routes(&schema, httptransport.New(a.Tracker, a.Slots), cfg.CORSOrigins, cfg.Playground)
	a.Handler = middleware.Chain(mux,
		middleware.Logging(logger),
		middleware.RateLimit(limiter),
	)
	return a, nil
}

// buildDeps leaves optional collaborators unset when they are not configured;
// the matching steps then report degraded.
func (a *App) buildDeps(ctx context.Context, cfg config.Config, logger *slog.Logger, tracer trace.Tracer) (invoice.Deps, error) {
	deps := invoice.Deps{
		Provider: facturapi.New(cfg.Facturapi.Key, cfg.Facturapi.BaseURL, cfg.RequestTimeout),
		Renderer: pdf.New(cfg.TempDir),
		Logger:   logger,
		Tracer:   tracer,
		Tracker:  a.Tracker,
	}

	st, err := a.openStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return invoice.Deps{}, err
	}
	deps.Store = st

	if cfg.OpenAI.APIKey != "" {
		deps.Summarizer = summary.New(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, summaryTimeout)
	} else {
		logger.Warn("OPENAI_API_KEY not set; summaries use the fallback text")
	}

	if cfg.SMTP.Host != "" {
		deps.Mailer = email.New(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		logger.Warn("SMTP_HOST not set; invoices will not be emailed")
	}

	if cfg.Twilio.Enabled() {
		client := messaging.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
		deps.WhatsApp = messaging.NewSender(client, messaging.WhatsApp, cfg.Twilio.WhatsAppFrom)
		deps.SMS = messaging.NewSender(client, messaging.SMS, cfg.Twilio.SMSFrom)
	} else {
		logger.Warn("Twilio credentials not set; SMS and WhatsApp are disabled")
	}

	if cfg.Archive.Bucket != "" {
		arch, err := archive.NewS3(ctx, archive.Config{
			Bucket:   cfg.Archive.Bucket,
			Region:   cfg.Archive.Region,
			Endpoint: cfg.Archive.Endpoint,
			Prefix:   "invoices/",
		})
		if err != nil {
			return invoice.Deps{}, err
		}
		deps.Archiver = arch
	}

	return deps, nil
}

func (a *App) openStore(ctx context.Context, dsn string, logger *slog.Logger) (store.Store, error) {
	if dsn == "" {
		logger.Warn("DATABASE_URL not set; issued invoices are kept in memory")
		return store.NewMemoryStore(), nil
	}

	db, err := store.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeDB(db))

	pg := store.NewPostgresStore(db)
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}

func closeDB(db *sql.DB) func(context.Context) error {
	return func(context.Context) error { return db.Close() }
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
