package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/config"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/database"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/handler"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/inventory"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/middleware"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/payment"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/queue"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/router"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/service"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := setupLogger(cfg)

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("migrate")
		}
		log.Info("schema migrated")
	}

	rdb := config.NewRedisClient(cfg.Redis) // nil when Redis is unreachable
	if rdb != nil {
		defer rdb.Close()
	}

	publisher := queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
	defer publisher.Close()

	app := build(cfg, db, rdb, publisher)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	app.routes(e, cfg, rdb)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.NewExpirySweeper(app.carts, cfg.Booking.SweepInterval, cfg.Booking.SweepBatchSize).Start(ctx)
	}()
	if cfg.AMQP.ConsumerEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer := queue.NewTicketDeliveryConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, cfg.AMQP.DeliveryLogDir)
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("ticket delivery consumer stopped")
			}
		}()
	}

	go func() {
		addr := ":" + cfg.Port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	wg.Wait()
}

func setupLogger(cfg config.Config) *logrus.Logger {
	log := logrus.StandardLogger()
	if cfg.Env == "dev" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level; using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// application holds the wired handlers plus what the background workers
// need.
type application struct {
	users    *repository.UserRepo
	carts    *service.CartService
	health   *handler.HealthHandler
	auth     *handler.AuthHandler
	catalog  *handler.CatalogHandler
	cart     *handler.CartHandler
	bookings *handler.BookingHandler
	payments *handler.PaymentHandler
	dash     *handler.DashboardHandler
}

func build(cfg config.Config, db *sqlx.DB, rdb *redis.Client, publisher *queue.Publisher) *application {
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	exhibitions := repository.NewExhibitionRepo(db)
	shows := repository.NewShowRepo(db)
	prices := repository.NewPricingRepo(db)
	slots := repository.NewTimeSlotRepo(db)
	cartRows := repository.NewCartRepo(db)
	orders := repository.NewOrderRepo(db)
	bookingRows := repository.NewBookingRepo(db)
	tickets := repository.NewTicketRepo(db)
	stats := repository.NewStatsRepo(db)

	tx := database.NewTransactor(db)
	ledger := inventory.NewLedger(inventory.NewSQLStore(db))
	gateway := payment.NewRazorpay(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.WebhookSecret)

	carts := service.NewCartService(tx, ledger, cartRows, slots, prices, cfg.Booking)
	planner := service.NewSlotService(tx, ledger, slots)
	bookings := service.NewBookingService(service.BookingDeps{
		Tx:        tx,
		Ledger:    ledger,
		Bookings:  bookingRows,
		Tickets:   tickets,
		Orders:    orders,
		Slots:     slots,
		Prices:    prices,
		Gateway:   gateway,
		Publisher: publisher,
		Roles:     users,
	}, cfg.Booking)
	deps := service.PaymentDeps{
		Tx:        tx,
		Ledger:    ledger,
		Cart:      carts,
		Carts:     cartRows,
		Orders:    orders,
		Bookings:  bookingRows,
		Slots:     slots,
		Gateway:   gateway,
		Publisher: publisher,
	}
	if rdb != nil {
		deps.Deduper = service.NewRedisEventDeduper(rdb, cfg.Booking.EventDedupeTTL)
	}
	payments := service.NewPaymentService(deps, cfg.Razorpay, cfg.Booking)

	return &application{
		users:    users,
		carts:    carts,
		health:   &handler.HealthHandler{DB: db, Redis: rdb},
		auth:     handler.NewAuthHandler(cfg, users, tokens),
		catalog:  handler.NewCatalogHandler(exhibitions, shows, prices, slots, planner),
		cart:     handler.NewCartHandler(carts),
		bookings: handler.NewBookingHandler(bookings),
		payments: handler.NewPaymentHandler(payments),
		dash:     handler.NewDashboardHandler(service.NewDashboardService(stats)),
	}
}

func (a *application) routes(e *echo.Echo, cfg config.Config, rdb *redis.Client) {
	router.RegisterRoutes(e, a.health)
	router.RegisterAuth(e, a.auth, cfg.JWTSecret)
	router.RegisterPublic(e, a.catalog, middleware.NewRedisCache(cfg.Cache, rdb))
	router.RegisterVisitor(e, router.VisitorHandlers{
		Cart:     a.cart,
		Bookings: a.bookings,
		Payments: a.payments,
	}, cfg.JWTSecret, middleware.NewTokenBucket(cfg.RateLimit, rdb))
	router.RegisterGate(e, a.bookings, cfg.JWTSecret, a.users)
	router.RegisterAdmin(e, router.AdminHandlers{
		Catalog:   a.catalog,
		Bookings:  a.bookings,
		Dashboard: a.dash,
	}, cfg.JWTSecret, a.users)
}
