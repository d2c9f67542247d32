package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcart "github.com/Zhima-Mochi/coffeerealm-pos/internal/application/cart"
	appinv "github.com/Zhima-Mochi/coffeerealm-pos/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/coffeerealm-pos/internal/application/order"
	apppayment "github.com/Zhima-Mochi/coffeerealm-pos/internal/application/payment"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/application/terminal"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/config"
	dominv "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/order"
	dompay "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/payment"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/filestore"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/id"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/identity"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/rabbitmq"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/seed"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/xendit"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/coffeerealm-pos/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/coffeerealm-pos/internal/presentation/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		panic(err)
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	counters, histograms, gauges := prometrics.Standard(prometrics.New(registry, "", ""))
	tel := infraobs.New(
		oteltrace.New(cfg.ServiceName),
		zaplogger.New(baseLogger),
		infraobs.Instruments{Counters: counters, Histograms: histograms, Gauges: gauges},
	)

	// In-memory event bus (acts as outbox/event publisher)
	bus := outbox.NewBus(tel.Logger())
	bus.Start(context.Background())

	inventoryRepo := memory.NewInventoryRepository()
	orderRepo := memory.NewOrderRepository()
	idGenerator := id.NewUUIDGenerator()
	orderNumbers := id.NewOrderNumbers()

	policy, err := domorder.ParsePolicy(cfg.OrderTransitions)
	if err != nil {
		systemLogger.Fatal("invalid_config", zap.Error(err))
	}

	inventoryService := appinv.NewService(inventoryRepo, idGenerator, bus, tel)
	orderService := apporder.NewService(orderRepo,
		apporder.NewCreateOrderUseCase(orderRepo, idGenerator, orderNumbers, bus, tel),
		bus, policy, tel)
	cartService := appcart.NewService(memory.NewCartRepository(), tel)

	// Stock follows orders through the bus instead of a direct call.
	events := workerpresentation.NewSubscriber(bus, tel.Logger())
	appinv.NewWorker(events, appinv.NewDeductStockUseCase(inventoryRepo, bus, tel), tel).Start()

	if cfg.SeedDemoData {
		seedDemoData(inventoryService, orderService, idGenerator, orderNumbers, systemLogger)
	}

	var relay *rabbitmq.Relay
	if cfg.RabbitMQURL != "" {
		relay, err = rabbitmq.Dial(cfg.RabbitMQURL, cfg.RabbitMQExchange, cfg.ServiceName, tel)
		if err != nil {
			systemLogger.Fatal("rabbitmq_dial_failed", zap.Error(err))
		}
		relay.Forward(events,
			domorder.OrderCreatedEvent{}.EventName(),
			domorder.OrderStatusChangedEvent{}.EventName(),
			dominv.LowStockEvent{}.EventName(),
			dominv.StockDeductedEvent{}.EventName(),
		)
	}

	var gateway dompay.Gateway
	if cfg.XenditSecretKey == "" {
		systemLogger.Warn("xendit_demo_gateway", zap.String("reason", "XENDIT_SECRET_KEY is empty"))
		gateway = xendit.NewDemoGateway("")
	} else {
		gateway = xendit.New(xendit.Config{
			BaseURL:         cfg.XenditBaseURL,
			SecretKey:       cfg.XenditSecretKey,
			Currency:        cfg.XenditCurrency,
			InvoiceDuration: cfg.InvoiceDuration,
		}, tel)
	}

	refs, err := id.NewReferenceGenerator(cfg.SnowflakeNode)
	if err != nil {
		systemLogger.Fatal("invalid_config", zap.Error(err))
	}
	mailbox, err := filestore.NewMailbox(cfg.PendingCheckoutDir)
	if err != nil {
		systemLogger.Fatal("pending_checkout_store_failed", zap.Error(err))
	}

	rate := decimal.NewFromFloat(cfg.XenditUSDRate)
	dialog := apppayment.NewController(
		apppayment.NewCreateInvoiceUseCase(gateway, refs, apppayment.InvoiceConfig{
			ReturnURL: cfg.ReturnURL(),
			Convert:   func(usd decimal.Decimal) decimal.Decimal { return xendit.ConvertAmount(usd, rate) },
		}, tel),
		gateway,
		mailbox,
		apppayment.Timing{
			PollInterval: cfg.PaymentPollInterval,
			SettleDelay:  cfg.PaymentSettleDelay,
			SuccessDelay: cfg.PaymentSuccessDelay,
		},
		tel,
	)
	workflow := terminal.NewWorkflow(
		inventoryService,
		cartService,
		orderService,
		dialog,
		apppayment.NewResumer(mailbox, orderService, cartService, tel),
		terminal.NewNotifier(cfg.NotificationTTL),
		tel,
	)

	var provider identity.Provider = identity.NewHeaderProvider(identity.Config{
		UserHeader:  cfg.AuthUserHeader,
		EmailHeader: cfg.AuthEmailHeader,
		SignOutURL:  cfg.AuthSignOutURL,
	})
	if cfg.AuthDevUser != "" {
		systemLogger.Warn("identity_dev_user", zap.String("user", cfg.AuthDevUser))
		provider = identity.StaticProvider{User: identity.User{ID: cfg.AuthDevUser}}
	}

	handler := httppresentation.NewHandler(httppresentation.Deps{
		Inventory:    inventoryService,
		Orders:       orderService,
		Terminal:     workflow,
		Identity:     provider,
		TerminalPath: cfg.TerminalPath,
		FormatAmount: xendit.FormatAmount,
		Metrics:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	}, tel)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("return_url", cfg.ReturnURL()),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}

	dialog.Shutdown()
	if err := bus.Stop(shutdownCtx); err != nil {
		systemLogger.Error("outbox_stop_error", zap.Error(err))
	}
	if relay != nil {
		if err := relay.Close(); err != nil {
			systemLogger.Error("rabbitmq_close_error", zap.Error(err))
		}
	}
}

// seedDemoData loads the starter menu and demo orders into empty stores.
func seedDemoData(inv *appinv.Service, orders *apporder.Service, ids id.UUIDGenerator, numbers id.OrderNumbers, logger *zap.Logger) {
	ctx := context.Background()
	now := time.Now()

	items, err := seed.Catalog(now)
	if err != nil {
		logger.Error("seed_catalog_failed", zap.Error(err))
		return
	}
	if seeded, err := inv.Seed(ctx, items); err != nil {
		logger.Error("seed_catalog_failed", zap.Error(err))
	} else if seeded {
		logger.Info("seed_catalog_loaded", zap.Int("items", len(items)))
	}

	demo, err := seed.Orders(now, ids.NewID, numbers.NewNumber)
	if err != nil {
		logger.Error("seed_orders_failed", zap.Error(err))
		return
	}
	if seeded, err := orders.Seed(ctx, demo); err != nil {
		logger.Error("seed_orders_failed", zap.Error(err))
	} else if seeded {
		logger.Info("seed_orders_loaded", zap.Int("orders", len(demo)))
	}
}
