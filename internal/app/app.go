package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/drstein77/smartbilling/internal/checkout"
	"github.com/drstein77/smartbilling/internal/config"
	"github.com/drstein77/smartbilling/internal/controllers"
	"github.com/drstein77/smartbilling/internal/dbkeeper"
	"github.com/drstein77/smartbilling/internal/events"
	"github.com/drstein77/smartbilling/internal/logger"
	"github.com/drstein77/smartbilling/internal/metrics"
	"github.com/drstein77/smartbilling/internal/middleware"
	"github.com/drstein77/smartbilling/internal/scan"
	"github.com/drstein77/smartbilling/internal/storage"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownGrace     = 5 * time.Second
)

type Server struct {
	mu       sync.Mutex
	srv      *http.Server
	stopping bool
	ctx      context.Context
	option   *config.Options
	Log      *logger.Logger
}

// NewServer parses the configuration and builds the logger, so that Log is
// usable before Serve is called.
func NewServer(ctx context.Context) (*Server, error) {
	option := config.NewOptions()
	if err := option.ParseFlags(); err != nil {
		return nil, err
	}

	nLogger, err := logger.NewLogger(option.LogLevel())
	if err != nil {
		return nil, err
	}

	return &Server{ctx: ctx, option: option, Log: nLogger}, nil
}

// Serve wires the terminal together and blocks until the HTTP server stops.
func (server *Server) Serve() error {
	ctx, cancel := context.WithCancel(server.ctx)
	defer cancel()

	store, err := server.openCatalog(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(reg)

	notifier, closeNotifier := server.openNotifier()
	defer closeNotifier()

	session := checkout.NewSession(checkout.Config{
		Resolver: store,
		Verifier: checkout.NewDemoVerifier(server.option.DemoPIN(), server.option.VerifyLatency()),
		Notifier: notifier,
		Metrics:  checkoutMetrics,
		Log:      server.Log.Named("checkout"),
	})

	var wg sync.WaitGroup
	if device := server.option.ScanDevice(); device != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			server.runScanner(ctx, device, session, checkoutMetrics)
		}()
	}

	// create router and mount routes
	basecontr := controllers.NewBaseController(session, store, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), server.Log)
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(server.Log.Named("http")))
	r.Mount("/", basecontr.Route())

	// configure and start the server
	srv := &http.Server{
		Addr:              server.option.RunAddr(),
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	// a shutdown requested during startup wins over listening
	server.mu.Lock()
	if server.stopping || ctx.Err() != nil {
		server.mu.Unlock()
		cancel()
		wg.Wait()
		server.Log.Info("server stopped before listening")
		return nil
	}
	server.srv = srv
	server.mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownGrace)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			server.Log.Error("server shutdown failed", zap.Error(err))
		}
	}()

	server.Log.Info("server started", zap.String("addr", srv.Addr))
	err = srv.ListenAndServe()

	cancel()
	wg.Wait()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server within timeout. Called before
// the server listens, it makes Serve return without listening.
func (server *Server) Shutdown(timeout time.Duration) {
	server.mu.Lock()
	server.stopping = true
	srv := server.srv
	server.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			server.Log.Error("server shutdown failed", zap.Error(err))
		}
	}

	server.Log.Info("server stopped")
	_ = server.Log.Sync()
}

func (server *Server) openCatalog(ctx context.Context) (*storage.MemoryStorage, error) {
	// keeper stays a nil interface without a DSN
	var keeper storage.Keeper

	if dsn := server.option.DataBaseDSN(); dsn != "" {
		dbLog := server.Log.Named("db")
		if err := dbkeeper.RunMigrations(dsn, dbLog); err != nil {
			return nil, err
		}
		kp, err := dbkeeper.NewDBKeeper(ctx, server.option.DataBaseDSN, dbLog)
		if err != nil {
			return nil, err
		}
		keeper = kp
	}

	store, err := storage.NewMemoryStorage(ctx, keeper, server.option.CatalogFile(), server.Log)
	if err != nil {
		if keeper != nil {
			keeper.Close()
		}
		return nil, err
	}
	return store, nil
}

// openNotifier connects to RabbitMQ when configured. A broker that cannot be
// reached is logged and checkout continues without events.
func (server *Server) openNotifier() (checkout.Notifier, func()) {
	url := server.option.RabbitMQURL()
	if url == "" {
		return nil, func() {}
	}

	pub, err := events.Dial(url)
	if err != nil {
		server.Log.Error("checkout events disabled", zap.Error(err))
		return nil, func() {}
	}
	server.Log.Info("publishing checkout events", zap.String("exchange", events.EventsExchange))

	return pub, func() {
		if err := pub.Close(); err != nil {
			server.Log.Warn("failed to close event publisher", zap.Error(err))
		}
	}
}

func (server *Server) runScanner(ctx context.Context, device string, sink scan.Sink, rec scan.Recorder) {
	open := scan.Device(device)
	if device == "-" {
		open = scan.Stdin()
	}
	src := scan.NewLineSource(open, scan.DefaultMaxCodeLength)
	scanLog := server.Log.Named("scan")
	defer func() {
		if err := src.Close(); err != nil {
			scanLog.Warn("failed to close scan input", zap.Error(err))
		}
	}()

	scanLog.Info("scanner feed started", zap.String("device", device))
	err := scan.Pump(ctx, src, sink, scanLog, scan.PumpOptions{
		Debounce: server.option.ScanDebounce(),
		Metrics:  rec,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		scanLog.Error("scanner feed stopped", zap.Error(err))
		return
	}
	scanLog.Info("scanner feed stopped")
}
