package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/alovak/cardflow-gateway/gateway/models"
	"github.com/alovak/cardflow-gateway/internal/bank"
	"github.com/alovak/cardflow-gateway/internal/events"
	"github.com/alovak/cardflow-gateway/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/rs/cors"
	"golang.org/x/exp/slog"
)

// App is the main application, it contains all the components of the gateway
// and is responsible for starting and stopping them.
type App struct {
	srv     *http.Server
	wg      *sync.WaitGroup
	Addr    string
	logger  *slog.Logger
	config  *Config
	closers []io.Closer
}

func NewApp(logger *slog.Logger, config *Config) *App {
	logger = logger.With(slog.String("app", "gateway"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:     &sync.WaitGroup{},
		logger: logger,
		config: config,
	}
}

func (a *App) Start() error {
	a.logger.Info("starting app...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repository, err := a.openRepository(ctx)
	if err != nil {
		return err
	}

	loc, err := a.config.Location()
	if err != nil {
		return err
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(a.config.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(a.config.KafkaBrokers, a.config.KafkaTopic)
		a.closers = append(a.closers, publisher)
		a.logger.Info("publishing payment events", slog.String("topic", a.config.KafkaTopic))
	}

	bankClient := bank.New(a.config.BankURL, &http.Client{Timeout: a.config.BankTimeout}, a.logger)
	validator := NewValidator(WithLocation(loc))
	payments := NewService(repository, bankClient, validator, publisher, a.logger)

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(middleware.NewStructuredLogger(a.logger))
	router.Use(chimw.Recoverer)
	if len(a.config.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins: a.config.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type"},
		}).Handler)
	}

	api := NewAPI(payments)
	api.AppendRoutes(router)

	router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := repository.Ping(ctx); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				a.logger.Error("starting http server", "err", err)
			}

			a.logger.Info("http server stopped")
		}

		a.wg.Done()
	}()

	return nil
}

func (a *App) openRepository(ctx context.Context) (Repository, error) {
	logger := a.logger.With(slog.String("backend", a.config.StoreBackend))

	switch a.config.StoreBackend {
	case BackendMemory, "":
		var seed []*models.PaymentRecord
		if a.config.SeedFixture {
			seed = append(seed, FixturePayment())
		}
		logger.Info("using in-memory store")
		return NewMemoryRepository(seed...), nil

	case BackendPostgres:
		db, err := sql.Open("postgres", a.config.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxIdleConns(5)
		db.SetMaxOpenConns(10)
		a.closers = append(a.closers, db)

		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		repo := NewPGRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			return nil, err
		}
		if a.config.SeedFixture {
			if err := repo.Seed(ctx, FixturePayment()); err != nil {
				return nil, err
			}
		}
		logger.Info("using postgres store")
		return repo, nil

	case BackendSQLite:
		repo, err := OpenSQLiteRepository(ctx, a.config.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, repo)
		if a.config.SeedFixture {
			if err := repo.Seed(ctx, FixturePayment()); err != nil {
				return nil, err
			}
		}
		logger.Info("using sqlite store", slog.String("path", a.config.SQLitePath))
		return repo, nil

	default:
		return nil, fmt.Errorf("unsupported store backend %q", a.config.StoreBackend)
	}
}

func (a *App) Shutdown(ctx context.Context) {
	a.logger.Info("shutting down app...")

	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			a.logger.Error("shutting down http server", "err", err)
		}
	}

	a.wg.Wait()

	// closed in reverse order of opening
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error("closing resource", "err", err)
		}
	}

	a.logger.Info("app stopped")
}
