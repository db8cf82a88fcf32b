package router

import (
	"context"
	"fmt"
	"time"

	adminsvc "unicarbon-backend/internal/application/admin"
	companysvc "unicarbon-backend/internal/application/companies"
	"unicarbon-backend/internal/application/emails"
	healthsvc "unicarbon-backend/internal/application/health"
	holdingsvc "unicarbon-backend/internal/application/holdings"
	offsetsvc "unicarbon-backend/internal/application/offsets"
	ordersvc "unicarbon-backend/internal/application/orders"
	"unicarbon-backend/internal/application/reconcile"
	"unicarbon-backend/internal/application/settlement"
	"unicarbon-backend/internal/config"
	"unicarbon-backend/internal/infrastructure/cache"
	"unicarbon-backend/internal/infrastructure/chain"
	"unicarbon-backend/internal/infrastructure/database"
	"unicarbon-backend/internal/infrastructure/ledger"
	"unicarbon-backend/internal/infrastructure/payments"
	adminhandler "unicarbon-backend/internal/interfaces/handlers/admin"
	companyhandler "unicarbon-backend/internal/interfaces/handlers/companies"
	healthhandler "unicarbon-backend/internal/interfaces/handlers/health"
	holdinghandler "unicarbon-backend/internal/interfaces/handlers/holdings"
	offsethandler "unicarbon-backend/internal/interfaces/handlers/offsets"
	orderhandler "unicarbon-backend/internal/interfaces/handlers/orders"
	payhandler "unicarbon-backend/internal/interfaces/handlers/payments"
	txhandler "unicarbon-backend/internal/interfaces/handlers/transactions"
	"unicarbon-backend/internal/middleware"
	"unicarbon-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const stripeHealthURL = "https://api.stripe.com/healthcheck"

// Deps are the opened infrastructure handles the routes are built on. Rdb and Chain are optional.
type Deps struct {
	DB      *gorm.DB
	Rdb     *redis.Client
	Chain   *chain.Client
	Gateway payments.Gateway
}

// CreateApp opens every configured backend and builds the Fiber app on them.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var db *gorm.DB
	var err error
	if cfg.DatabaseURL != "" {
		db, err = database.Open(cfg.DatabaseURL)
	} else {
		log.Warn().Str("path", cfg.SQLitePath).Msg("DATABASE_URL not set, using SQLite ledger")
		db, err = database.OpenSQLite(cfg.SQLitePath)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, nil, fmt.Errorf("migrate: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = cache.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
	} else {
		log.Warn().Msg("REDIS_URL not set, settlement locks and traffic stats disabled")
	}

	var chainClient *chain.Client
	if cfg.ChainRPCURL != "" {
		chainClient, err = chain.Dial(ctx, chain.Options{
			RPCURL:         cfg.ChainRPCURL,
			ChainID:        cfg.ChainID,
			PrivateKey:     cfg.ChainPrivateKey,
			ManagerAddress: cfg.CarbonManagerAddress,
			TokenAddress:   cfg.CreditTokenAddress,
		})
		if err != nil {
			return nil, nil, nil, err
		}
	} else {
		log.Warn().Msg("CHAIN_RPC_URL not set, chain-backed routes disabled")
	}

	app := NewApp(cfg, Deps{
		DB:      db,
		Rdb:     rdb,
		Chain:   chainClient,
		Gateway: payments.NewStripeGateway(cfg.StripeSecretKey),
	})
	return app, db, rdb, nil
}

// NewApp registers middleware and routes on deps.
func NewApp(cfg *config.Config, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler(deps.Rdb),
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.HealthMarker(deps.Rdb))

	store := ledger.New(deps.DB)

	healthDeps := healthsvc.Dependencies{Rdb: deps.Rdb, DB: store}
	if deps.Chain != nil {
		healthDeps.Chain = deps.Chain
	}
	if cfg.StripeSecretKey != "" {
		healthDeps.StripeURL = stripeHealthURL
	}
	hh := &healthhandler.Handlers{Deps: healthDeps, HealthAdminKey: cfg.HealthAdminKey}
	app.Get("/", hh.Dashboard)
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	orders := &ordersvc.Service{Store: store, Gateway: deps.Gateway, DefaultCurrency: cfg.DefaultCurrency}
	companies := &companysvc.Service{Store: store}
	if deps.Chain != nil && cfg.CreditTokenAddress != "" {
		companies.Tokens = deps.Chain
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimit{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Burst:             cfg.RateLimitBurst,
	})
	api := app.Group("/api/v1")

	oh := &orderhandler.Handlers{Orders: orders}
	api.Post("/orders", limiter.Handler(), oh.Create)
	api.Get("/orders/:orderId", oh.Get)

	ch := &companyhandler.Handlers{Service: companies}
	api.Post("/company", limiter.Handler(), ch.Register)
	api.Get("/company/:wallet", ch.Get)

	hold := &holdinghandler.Handlers{Service: &holdingsvc.Service{Store: store}}
	api.Get("/holdings/:userId", hold.ViewHoldings)
	api.Get("/holdings/:userId/:propertyId", hold.ViewHolding)

	admin := api.Group("/admin", middleware.RequireAdminKey(cfg.AdminKeyHash))

	if deps.Chain == nil {
		api.Post("/orders/verify", chainUnavailable)
		api.Post("/stripe/webhook", chainUnavailable)
		api.Post("/offset", chainUnavailable)
		api.Post("/offset/resume", chainUnavailable)
		api.Post("/tx/verify", chainUnavailable)
		admin.All("/*", chainUnavailable)
		return app
	}

	var alerts emails.Alerter
	if cfg.BrevoAPIKey != "" && cfg.OperatorEmail != "" {
		alerts = &emails.BrevoClient{APIKey: cfg.BrevoAPIKey, MailFrom: cfg.MailFrom, OperatorEmail: cfg.OperatorEmail}
	}

	confirmer := &settlement.Service{
		Store:                    store,
		Gateway:                  deps.Gateway,
		Verifier:                 &payments.SignatureVerifier{Secret: cfg.PaymentSignatureSecret},
		Mode:                     cfg.PaymentVerification,
		Chain:                    deps.Chain,
		Locker:                   &cache.Locker{Rdb: deps.Rdb},
		ConfirmTimeout:           cfg.ChainConfirmTimeout,
		CompensateOnChainFailure: cfg.CompensateOnChainFailure,
		Alerts:                   alerts,
	}
	offsets := &offsetsvc.Service{
		Store:          store,
		Chain:          deps.Chain,
		CompanyAddress: cfg.CompanyAddress,
		ConfirmTimeout: cfg.ChainConfirmTimeout,
		Alerts:         alerts,
	}
	reconciler := &reconcile.Service{Store: store, Chain: deps.Chain, Offsets: offsets}
	operator := &adminsvc.Service{Store: store, Chain: deps.Chain, ConfirmTimeout: cfg.ChainConfirmTimeout}

	oh.Settlement = confirmer
	api.Post("/orders/verify", limiter.Handler(), oh.Verify)

	stripeWebhook := &payhandler.WebhookHandler{
		Settlement:    confirmer,
		WebhookSecret: cfg.StripeWebhookSecret,
		SettleTimeout: cfg.ChainConfirmTimeout + 30*time.Second,
	}
	api.Post("/stripe/webhook", stripeWebhook.HandleWebhook)
	app.Hooks().OnShutdown(func() error {
		stripeWebhook.Wait()
		return nil
	})

	ofh := &offsethandler.Handlers{Service: offsets}
	api.Post("/offset", limiter.Handler(), ofh.Offset)
	api.Post("/offset/resume", limiter.Handler(), ofh.Resume)

	th := &txhandler.Handlers{Service: reconciler}
	api.Post("/tx/verify", limiter.Handler(), th.Verify)

	ah := &adminhandler.Handlers{Service: operator}
	admin.Post("/project-complete", ah.ProjectComplete)
	admin.Post("/withdraw", ah.Withdraw)
	admin.Get("/price", ah.Price)
	admin.Get("/submissions", ah.Submissions)

	return app
}

func chainUnavailable(c *fiber.Ctx) error {
	return response.Error(c, "Chain is not configured", fiber.StatusServiceUnavailable, nil)
}
