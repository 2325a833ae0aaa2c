package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/marmoreal/stonecms/contracts"
	"github.com/marmoreal/stonecms/database"
	adminshandler "github.com/marmoreal/stonecms/domains/admins/be/handler"
	adminsrepo "github.com/marmoreal/stonecms/domains/admins/be/repo"
	adminsservice "github.com/marmoreal/stonecms/domains/admins/be/service"
	collectionshandler "github.com/marmoreal/stonecms/domains/collections/be/handler"
	collectionsrepo "github.com/marmoreal/stonecms/domains/collections/be/repo"
	collectionsservice "github.com/marmoreal/stonecms/domains/collections/be/service"
	enquirieshandler "github.com/marmoreal/stonecms/domains/enquiries/be/handler"
	enquiriesrepo "github.com/marmoreal/stonecms/domains/enquiries/be/repo"
	enquiriesservice "github.com/marmoreal/stonecms/domains/enquiries/be/service"
	mediahandler "github.com/marmoreal/stonecms/domains/media/be/handler"
	mediarepo "github.com/marmoreal/stonecms/domains/media/be/repo"
	mediaservice "github.com/marmoreal/stonecms/domains/media/be/service"
	postshandler "github.com/marmoreal/stonecms/domains/posts/be/handler"
	postsrepo "github.com/marmoreal/stonecms/domains/posts/be/repo"
	postsservice "github.com/marmoreal/stonecms/domains/posts/be/service"
	productshandler "github.com/marmoreal/stonecms/domains/products/be/handler"
	productsrepo "github.com/marmoreal/stonecms/domains/products/be/repo"
	productsservice "github.com/marmoreal/stonecms/domains/products/be/service"
	projectshandler "github.com/marmoreal/stonecms/domains/projects/be/handler"
	projectsrepo "github.com/marmoreal/stonecms/domains/projects/be/repo"
	projectsservice "github.com/marmoreal/stonecms/domains/projects/be/service"
	settingshandler "github.com/marmoreal/stonecms/domains/settings/be/handler"
	settingsrepo "github.com/marmoreal/stonecms/domains/settings/be/repo"
	settingsservice "github.com/marmoreal/stonecms/domains/settings/be/service"
	platformauth "github.com/marmoreal/stonecms/platform/go/auth"
	"github.com/marmoreal/stonecms/platform/go/cache"
	platformlogging "github.com/marmoreal/stonecms/platform/go/logging"
	"github.com/marmoreal/stonecms/platform/go/metrics"
	platformmiddleware "github.com/marmoreal/stonecms/platform/go/middleware"
	"github.com/marmoreal/stonecms/platform/go/persistence"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
	"github.com/marmoreal/stonecms/platform/go/storage"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:","`

	DatabaseURL      string        `env:"DATABASE_URL,required"`
	DBMaxConns       int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"60s"`
	MigrateOnStart   bool          `env:"MIGRATE_ON_START" envDefault:"false"`
	SeedOnStart      bool          `env:"SEED_ON_START" envDefault:"false"`

	AuthProvider            string        `env:"AUTH_PROVIDER" envDefault:"local"` // local | firebase | dev
	JWTSecret               string        `env:"JWT_SECRET"`
	JWTIssuer               string        `env:"JWT_ISSUER" envDefault:"stonecms"`
	JWTTTL                  time.Duration `env:"JWT_TTL" envDefault:"12h"`
	FirebaseCredentialsFile string        `env:"FIREBASE_CREDENTIALS_FILE"`
	LoginRate               float64       `env:"LOGIN_RATE" envDefault:"0.1"`
	LoginBurst              int           `env:"LOGIN_BURST" envDefault:"5"`

	StorageBackend     string `env:"STORAGE_BACKEND" envDefault:"local"` // gcs | s3 | local
	StorageBucket      string `env:"STORAGE_BUCKET"`
	StorageLocalDir    string `env:"STORAGE_LOCAL_DIR" envDefault:"./.data/storage"`
	S3Region           string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint         string `env:"S3_ENDPOINT"`
	S3UsePathStyle     bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`
	S3AccessKey        string `env:"S3_ACCESS_KEY"`
	S3SecretKey        string `env:"S3_SECRET_KEY"`
	PublicMediaBaseURL string `env:"PUBLIC_MEDIA_BASE_URL,required"`
	MediaMaxBytes      int64  `env:"MEDIA_MAX_BYTES" envDefault:"10485760"`

	RedisURL  string        `env:"REDIS_URL"`
	CacheSize int           `env:"CACHE_SIZE" envDefault:"1024"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	EnquiryRate  float64 `env:"ENQUIRY_RATE" envDefault:"0.05"`
	EnquiryBurst int     `env:"ENQUIRY_BURST" envDefault:"3"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "cms-api",
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api server stopped", zap.Error(err))
	}
}

func run(cfg config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)

	connector := persistence.NewPoolConnector(
		persistence.PoolConfig{ConnString: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns},
		logger,
		persistence.WithStateObserver[*pgxpool.Pool](func(state persistence.ConnState) {
			m.ConnectorState(int(state))
		}),
	)
	defer connector.Close()

	go func() {
		if err := connector.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("database connector stopped", zap.Error(err))
		}
	}()

	waitCtx, cancelWait := context.WithTimeout(ctx, cfg.DBConnectTimeout)
	err := connector.WaitReady(waitCtx)
	cancelWait()
	if err != nil {
		return fmt.Errorf("wait for database: %w", err)
	}
	pool, err := connector.Conn()
	if err != nil {
		return err
	}

	if cfg.MigrateOnStart {
		if err := database.Migrate(cfg.DatabaseURL, database.Up); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied")
	}

	defaults, err := database.LoadDefaults()
	if err != nil {
		return err
	}
	defaultSettings, err := defaults.SettingsJSON()
	if err != nil {
		return err
	}

	spec, err := contracts.Load(ctx)
	if err != nil {
		return err
	}

	cacheBackend, err := buildCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = cacheBackend.Close()
	}()

	blobs, closeBlobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBlobs()
	if err := blobs.Check(ctx); err != nil {
		logger.Warn("blob store check failed", zap.String("backend", blobs.Backend()), zap.Error(err))
	}
	blobs = storage.Instrument(blobs, m)

	authMiddleware, issuer, err := buildAuth(ctx, cfg, logger)
	if err != nil {
		return err
	}

	documents := persistence.NewDocumentValidator()

	adminStore, err := persistence.NewAdminStore(ctx, pool)
	if err != nil {
		return fmt.Errorf("init admin store: %w", err)
	}
	collectionStore, err := persistence.NewCollectionStore(ctx, pool)
	if err != nil {
		return fmt.Errorf("init collection store: %w", err)
	}
	productStore, err := persistence.NewProductStore(ctx, pool, documents)
	if err != nil {
		return fmt.Errorf("init product store: %w", err)
	}
	projectStore, err := persistence.NewProjectStore(ctx, pool)
	if err != nil {
		return fmt.Errorf("init project store: %w", err)
	}
	postStore, err := persistence.NewPostStore(ctx, pool, documents)
	if err != nil {
		return fmt.Errorf("init post store: %w", err)
	}
	enquiryStore, err := persistence.NewEnquiryStore(ctx, pool)
	if err != nil {
		return fmt.Errorf("init enquiry store: %w", err)
	}
	mediaStore, err := persistence.NewMediaStore(ctx, pool)
	if err != nil {
		return fmt.Errorf("init media store: %w", err)
	}
	settingsStore, err := persistence.NewSettingsStore(ctx, pool, documents)
	if err != nil {
		return fmt.Errorf("init settings store: %w", err)
	}

	adminsService := adminsservice.New(adminsrepo.NewPostgresRepository(adminStore), adminsservice.Config{Issuer: issuer, Logger: logger})
	collectionsService := collectionsservice.New(collectionsrepo.NewPostgresRepository(collectionStore), collectionsservice.Config{
		Defaults: defaults.Collections,
		Metrics:  m,
	})
	productsService := productsservice.New(productsrepo.NewPostgresRepository(productStore), productsservice.Config{
		Cache:   cacheBackend,
		Metrics: m,
		Logger:  logger,
	})
	projectsService := projectsservice.New(projectsrepo.NewPostgresRepository(projectStore, productStore), projectsservice.Config{Metrics: m})
	postsService := postsservice.New(postsrepo.NewPostgresRepository(postStore), postsservice.Config{Metrics: m})
	enquiriesService := enquiriesservice.New(enquiriesrepo.NewPostgresRepository(enquiryStore), enquiriesservice.Config{Logger: logger})
	mediaService := mediaservice.New(mediarepo.NewPostgresRepository(mediaStore), mediaservice.Config{
		Blobs:         blobs,
		PublicBaseURL: cfg.PublicMediaBaseURL,
		MaxBytes:      cfg.MediaMaxBytes,
		Logger:        logger,
	})
	settingsService := settingsservice.New(settingsrepo.NewPostgresRepository(settingsStore), settingsservice.Config{
		Defaults: defaultSettings,
		Cache:    cacheBackend,
		Metrics:  m,
		Logger:   logger,
	})

	if cfg.SeedOnStart {
		audit := requesttrace.System("startup")
		if _, err := collectionsService.List(ctx, audit, false); err != nil {
			return fmt.Errorf("seed collections: %w", err)
		}
		if _, err := settingsService.Get(ctx, audit); err != nil {
			return fmt.Errorf("seed settings: %w", err)
		}
		logger.Info("default content seeded")
	}

	enquiryLimiter := platformmiddleware.NewRateLimiter(platformmiddleware.RateLimitConfig{
		Rate:  cfg.EnquiryRate,
		Burst: cfg.EnquiryBurst,
	})
	loginLimiter := platformmiddleware.NewRateLimiter(platformmiddleware.RateLimitConfig{
		Rate:  cfg.LoginRate,
		Burst: cfg.LoginBurst,
	})

	domains := []routeRegistrar{
		adminshandler.New(adminsService, logger, adminshandler.WithLoginMiddleware(loginLimiter.Middleware)),
		collectionshandler.New(collectionsService, logger),
		productshandler.New(productsService, logger),
		projectshandler.New(projectsService, logger),
		postshandler.New(postsService, logger),
		enquirieshandler.New(enquiriesService, logger, enquirieshandler.WithSubmitMiddleware(enquiryLimiter.Middleware)),
		mediahandler.New(mediaService, logger, cfg.MediaMaxBytes),
		settingshandler.New(settingsService, logger),
	}

	rootRouter := chi.NewRouter()
	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		platformmiddleware.CORS(cfg.CORSOrigins),
		platformlogging.RequestLogger(logger),
		m.HTTPMiddleware,
	)

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		state, stateErr := connector.State()
		if state != persistence.StateConnected {
			logger.Warn("not ready", zap.Stringer("state", state), zap.Error(stateErr))
			http.Error(w, state.String(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Handle("/metrics", m.Handler())
	registerDocsRoutes(rootRouter, spec, logger)

	rootRouter.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
		r.Use(authMiddleware)
		r.Use(platformmiddleware.RequestTrace)

		for _, d := range domains {
			d.RegisterPublic(r)
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(platformauth.RequireRole(platformauth.RoleAdmin))
			r.Use(platformmiddleware.SpecValidator(spec))
			for _, d := range domains {
				d.RegisterAdmin(r)
			}
		})
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           rootRouter,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port), zap.String("auth_provider", cfg.AuthProvider))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	return nil
}

// routeRegistrar is implemented by every domain handler.
type routeRegistrar interface {
	RegisterPublic(r chi.Router)
	RegisterAdmin(r chi.Router)
}

func buildCache(ctx context.Context, cfg config) (cache.Cache, error) {
	if strings.TrimSpace(cfg.RedisURL) != "" {
		return cache.NewRedis(ctx, cfg.RedisURL, cfg.CacheTTL)
	}
	return cache.NewMemory(cfg.CacheSize, cfg.CacheTTL), nil
}

func buildBlobStore(ctx context.Context, cfg config) (storage.BlobStore, func(), error) {
	noop := func() {}
	switch cfg.StorageBackend {
	case storage.BackendGCS:
		if cfg.StorageBucket == "" {
			return nil, noop, errors.New("STORAGE_BUCKET is required when STORAGE_BACKEND=gcs")
		}
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("init gcs client: %w", err)
		}
		return storage.NewGCSStore(client, cfg.StorageBucket), func() { _ = client.Close() }, nil
	case storage.BackendS3:
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:       cfg.StorageBucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3UsePathStyle,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
		})
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case storage.BackendLocal:
		if strings.TrimSpace(cfg.StorageLocalDir) == "" {
			return nil, noop, errors.New("STORAGE_LOCAL_DIR is required when STORAGE_BACKEND=local")
		}
		return storage.NewLocalStore(cfg.StorageLocalDir), noop, nil
	default:
		return nil, noop, fmt.Errorf("invalid STORAGE_BACKEND %q (use gcs, s3 or local)", cfg.StorageBackend)
	}
}
