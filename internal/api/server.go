package api

import (
	"context"
	"time"

	"github.com/coder/quartz"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/roach88/diceroll/internal/escrow"
	"github.com/roach88/diceroll/internal/store"
	"github.com/roach88/diceroll/internal/wager"
)

// Header names carrying the caller's identity and credential.
const (
	HeaderIdentity   = "X-Diceroll-Identity"
	HeaderCredential = "X-Diceroll-Credential"
)

// Journal is the read side the API needs beyond the controller.
// Implemented by *store.Store.
type Journal interface {
	Ping(ctx context.Context) error
	Postings(ctx context.Context, f store.PostingFilter) ([]wager.Posting, error)
}

// Config wires a server.
type Config struct {
	Controller *escrow.Controller
	Journal    Journal

	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer

	Logger zerolog.Logger

	// RateLimit is requests per second per client address; RateBurst the
	// bucket size. Zero disables limiting.
	RateLimit float64
	RateBurst int

	// ProxyHeader names the header carrying the client address when the
	// server sits behind a reverse proxy. Empty uses the remote address.
	ProxyHeader string

	// Clock drives the limiter. Default: quartz.NewReal().
	Clock quartz.Clock
}

type server struct {
	ctl     *escrow.Controller
	journal Journal
	limit   *limiter
	log     zerolog.Logger
}

// New builds the fiber app with every route registered.
func New(cfg Config) *fiber.App {
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	s := &server{
		ctl:     cfg.Controller,
		journal: cfg.Journal,
		limit:   newLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Clock),
		log:     cfg.Logger,
	}

	app := fiber.New(fiber.Config{
		AppName:               "diceroll",
		DisableStartupMessage: true,
		Immutable:             true,
		UnescapePath:          true,
		ProxyHeader:           cfg.ProxyHeader,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          errorHandler(cfg.Logger),
	})
	app.Use(recover.New())
	app.Use(s.accessLog)

	app.Get("/health", s.health)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/v1", s.rateLimit, s.credentials)

	v1.Post("/accounts", s.openAccount)
	v1.Get("/accounts/:id", s.account)
	v1.Post("/accounts/:id/deposit", s.deposit)
	v1.Post("/accounts/:id/withdraw", s.withdraw)
	v1.Get("/accounts/:id/sessions", s.listSessions)

	v1.Post("/sessions", s.setup)
	v1.Get("/sessions/:vendor/:player", s.session)
	v1.Get("/sessions/:vendor/:player/postings", s.postings)
	v1.Post("/sessions/:vendor/:player/play", s.play)
	v1.Delete("/sessions/:vendor/:player", s.delete)

	return app
}
