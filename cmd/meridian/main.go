package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian/internal/app"
	"github.com/meridian-erp/meridian/internal/auth"
	"github.com/meridian-erp/meridian/internal/masterdata/categories"
	"github.com/meridian-erp/meridian/internal/masterdata/products"
	mdshared "github.com/meridian-erp/meridian/internal/masterdata/shared"
	"github.com/meridian-erp/meridian/internal/masterdata/suppliers"
	"github.com/meridian-erp/meridian/internal/masterdata/units"
	"github.com/meridian-erp/meridian/internal/platform/cache"
	"github.com/meridian-erp/meridian/internal/platform/db"
	"github.com/meridian-erp/meridian/internal/purchasing"
	"github.com/meridian-erp/meridian/internal/rbac"
	"github.com/meridian-erp/meridian/internal/roles"
	"github.com/meridian-erp/meridian/internal/shared"
	"github.com/meridian-erp/meridian/internal/users"
	"github.com/meridian-erp/meridian/internal/view"
	"github.com/meridian-erp/meridian/jobs"
)

// productDefaults adapts the product catalogue to the defaults purchasing
// needs when adding order lines.
type productDefaults struct {
	service *products.Service
}

func (a productDefaults) ProductDefaults(ctx context.Context, productID int64) (purchasing.ProductDefaults, error) {
	product, err := a.service.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, mdshared.ErrNotFound) || errors.Is(err, mdshared.ErrInvalidID) {
			return purchasing.ProductDefaults{}, purchasing.ErrNotFound
		}
		return purchasing.ProductDefaults{}, err
	}
	return purchasing.ProductDefaults{
		Name:          product.Name,
		SKU:           product.SKU,
		DefaultUnitID: product.UnitID,
	}, nil
}

// supplierDefaults adapts the supplier directory for order creation.
type supplierDefaults struct {
	service *suppliers.Service
}

func (a supplierDefaults) SupplierDefaults(ctx context.Context, supplierID int64) (purchasing.SupplierDefaults, error) {
	supplier, err := a.service.Get(ctx, supplierID)
	if err != nil {
		if errors.Is(err, mdshared.ErrNotFound) || errors.Is(err, mdshared.ErrInvalidID) {
			return purchasing.SupplierDefaults{}, purchasing.ErrNotFound
		}
		return purchasing.SupplierDefaults{}, err
	}
	return purchasing.SupplierDefaults{
		Name:            supplier.Name,
		DefaultCurrency: supplier.DefaultCurrency,
		PaymentTerms:    supplier.PaymentTerms,
		LeadTimeDays:    supplier.LeadTimeDays,
	}, nil
}

// metricsEnqueuer lets the suppliers handler queue metric recalculations
// without depending on asynq directly.
type metricsEnqueuer struct {
	client *jobs.Client
}

func (e metricsEnqueuer) EnqueueSupplierMetrics(ctx context.Context, supplierID int64) error {
	_, err := e.client.EnqueueSupplierMetrics(ctx, supplierID)
	return err
}

func seedPermissions(ctx context.Context, svc *rbac.Service, logger *slog.Logger) {
	for _, scope := range shared.AllScopes() {
		if _, err := svc.EnsurePermission(ctx, scope, ""); err != nil {
			logger.Warn("seed permission", slog.String("scope", scope), slog.Any("error", err))
		}
	}
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "meridian_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := shared.NewAuditLogger(pool)

	rbacService := rbac.NewService(pool)
	seedPermissions(ctx, rbacService, logger)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, auditLogger)
	usersHandler := users.NewHandler(logger, usersService, templates, csrfManager, sessionManager, rbacMiddleware)

	authService := auth.NewService(usersRepo, auth.NewRepository(pool), auditLogger)
	authHandler := auth.NewHandler(logger, authService, templates, csrfManager, sessionManager)

	rolesService := roles.NewService(roles.NewRepository(pool), rbacService, auditLogger)
	rolesHandler := roles.NewHandler(logger, rolesService, templates, csrfManager, sessionManager, rbacMiddleware)

	unitsService := units.NewService(units.NewRepository(pool))
	unitsHandler := units.NewHandler(logger, unitsService, templates, csrfManager, sessionManager, rbacMiddleware)

	categoriesService := categories.NewService(categories.NewRepository(pool))
	categoriesHandler := categories.NewHandler(logger, categoriesService, templates, csrfManager, sessionManager, rbacMiddleware)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("create jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	suppliersService := suppliers.NewService(suppliers.NewRepository(pool))
	suppliersHandler := suppliers.NewHandler(logger, suppliersService, templates, csrfManager, sessionManager, rbacMiddleware, metricsEnqueuer{client: jobsClient})

	productsService := products.NewService(products.NewRepository(pool))
	productsHandler := products.NewHandler(logger, productsService, templates, csrfManager, sessionManager, rbacMiddleware)

	purchasingService := purchasing.NewService(
		purchasing.NewRepository(pool),
		productDefaults{service: productsService},
		supplierDefaults{service: suppliersService},
		auditLogger,
		purchasing.ServiceConfig{TaxRate: decimal.NewFromFloat(cfg.TaxRate)},
	)
	purchasingHandler := purchasing.NewHandler(logger, purchasingService, templates, csrfManager, sessionManager, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,

		AuthHandler:       authHandler,
		PurchasingHandler: purchasingHandler,
		UnitsHandler:      unitsHandler,
		CategoriesHandler: categoriesHandler,
		SuppliersHandler:  suppliersHandler,
		ProductsHandler:   productsHandler,
		UsersHandler:      usersHandler,
		RolesHandler:      rolesHandler,
		JobHandler:        jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppRequestTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	}()

	logger.Info("meridian listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server run", slog.Any("error", err))
		os.Exit(1)
	}
}
