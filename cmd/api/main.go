package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/galleryprints/catalog-api/internal/handlers"
	"github.com/galleryprints/catalog-api/internal/ingest"
	"github.com/galleryprints/catalog-api/internal/museums"
	"github.com/galleryprints/catalog-api/internal/platform/config"
	pfirestore "github.com/galleryprints/catalog-api/internal/platform/firestore"
	"github.com/galleryprints/catalog-api/internal/platform/idempotency"
	"github.com/galleryprints/catalog-api/internal/platform/jobs"
	"github.com/galleryprints/catalog-api/internal/platform/observability"
	"github.com/galleryprints/catalog-api/internal/platform/secrets"
	platformstorage "github.com/galleryprints/catalog-api/internal/platform/storage"
	"github.com/galleryprints/catalog-api/internal/repositories"
	firestoreRepo "github.com/galleryprints/catalog-api/internal/repositories/firestore"
	"github.com/galleryprints/catalog-api/internal/services"
	"github.com/galleryprints/catalog-api/internal/tagging"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	storageClient, err := cloudstorage.NewClient(ctx)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()

	var uploader *platformstorage.Uploader
	if cfg.Storage.AssetsBucket != "" {
		uploader, err = platformstorage.NewUploader(storageClient, cfg.Storage.AssetsBucket, cfg.Storage.PublicBaseURL)
		if err != nil {
			logger.Fatal("failed to initialise asset uploader", zap.Error(err))
		}
	} else {
		logger.Info("assets bucket not configured; imported works will carry placeholder image urls")
	}

	healthRepo, err := newHealthRepository(firestoreClient, storageClient, cfg.Storage.AssetsBucket)
	if err != nil {
		logger.Fatal("failed to initialise health repository", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider, healthRepo)
	if err != nil {
		logger.Fatal("failed to initialise repository registry", zap.Error(err))
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			cleanupLogger := logger.Named("idempotency")
			for {
				select {
				case <-cleanupTicker.C:
					runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	sources, err := newSourceRegistry(logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialise museum sources", zap.Error(err))
	}

	var tagger *tagging.Tagger
	if cfg.Features.EnableTagging && strings.TrimSpace(cfg.AI.GeminiAPIKey) != "" {
		tagger, err = tagging.New(ctx, cfg.AI.GeminiAPIKey, tagging.Options{
			TaggingModel:   cfg.AI.TaggingModel,
			EmbeddingModel: cfg.AI.EmbeddingModel,
			Timeout:        cfg.AI.Timeout,
			Logger:         logger.Named("tagging"),
		})
		if err != nil {
			logger.Fatal("failed to initialise gemini tagger", zap.Error(err))
		}
		defer func() {
			if err := tagger.Close(); err != nil {
				logger.Warn("tagger close error", zap.Error(err))
			}
		}()
	} else {
		logger.Info("ai tagging disabled; imports will run untagged")
	}

	var retagPublisher services.RetagPublisher
	var retagTopic *pubsub.Topic
	if strings.TrimSpace(cfg.Jobs.RetagTopic) != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Google.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		retagTopic = pubsubClient.Topic(cfg.Jobs.RetagTopic)
		retagPublisher, err = jobs.NewPubSubRetagPublisher(retagTopic)
		if err != nil {
			logger.Fatal("failed to initialise retag publisher", zap.Error(err))
		}
	} else {
		logger.Info("retag topic not configured; retag dispatch will be a no-op")
	}

	searchService, err := services.NewSearchService(services.SearchServiceDeps{
		Sources: sources,
		Works:   registry.Works(),
	})
	if err != nil {
		logger.Fatal("failed to initialise search service", zap.Error(err))
	}

	importDeps := services.ImportServiceDeps{
		Sources:    sources,
		Works:      registry.Works(),
		Counters:   registry.Counters(),
		HTTPClient: &http.Client{Timeout: cfg.Museums.Timeout * 4},
		Clock:      time.Now,
		Logger:     logger.Named("import"),
	}
	if uploader != nil {
		importDeps.Uploader = uploader
	}
	if tagger != nil {
		importDeps.Tagger = tagger
	}
	importService, err := services.NewImportService(importDeps)
	if err != nil {
		logger.Fatal("failed to initialise import service", zap.Error(err))
	}

	retagService, err := services.NewRetagService(services.RetagServiceDeps{
		Works:     registry.Works(),
		Publisher: retagPublisher,
		BatchSize: cfg.Jobs.RetagBatchSize,
		Model:     cfg.AI.TaggingModel,
		Clock:     time.Now,
		Logger:    logger.Named("retag"),
	})
	if err != nil {
		logger.Fatal("failed to initialise retag service", zap.Error(err))
	}

	museumHandlers := handlers.NewMuseumHandlers(searchService, importService)
	uploadHandlers := handlers.NewUploadHandlers(importService, &ingest.Builder{
		DuplicateDistance: cfg.Ingest.DuplicateDistance,
		Logger:            logger.Named("ingest"),
	}, cfg.Ingest.MaxUploadBytes)
	adminHandlers := handlers.NewAdminHandlers(retagService)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthRepository(healthRepo),
		handlers.WithHealthVersion(strings.TrimSpace(envValues["API_BUILD_VERSION"])),
	)

	projectID := strings.TrimSpace(cfg.Google.ProjectID)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
		idempotencyMiddleware,
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithMuseumRoutes(museumHandlers.Routes),
		handlers.WithWorkRoutes(uploadHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("galleryprints catalog api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	if retagTopic != nil {
		retagTopic.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newSourceRegistry builds the museum adapter set. The Rijksmuseum adapter is
// only registered when its API key is configured; the other collections are
// keyless.
func newSourceRegistry(logger *zap.Logger, cfg config.Config) (*museums.Registry, error) {
	client := museums.NewClient(cfg.Museums.UserAgent, cfg.Museums.Timeout,
		museums.WithLogger(logger.Named("museums")),
	)

	cleveland, err := museums.NewClevelandSource(client, "")
	if err != nil {
		return nil, err
	}
	met, err := museums.NewMetSource(client, "")
	if err != nil {
		return nil, err
	}
	getty, err := museums.NewGettySource(client, "")
	if err != nil {
		return nil, err
	}
	nga, err := museums.NewNGASource(client, "", "")
	if err != nil {
		return nil, err
	}
	yale, err := museums.NewYaleSource(client, "")
	if err != nil {
		return nil, err
	}

	sources := []museums.Source{cleveland, met, getty, nga, yale}
	if key := strings.TrimSpace(cfg.Museums.RijksmuseumAPIKey); key != "" {
		rijks, err := museums.NewRijksmuseumSource(client, key, "", "")
		if err != nil {
			return nil, err
		}
		sources = append(sources, rijks)
	} else {
		logger.Warn("rijksmuseum api key not configured; source disabled")
	}

	return museums.NewRegistry(sources...)
}

func newHealthRepository(client *firestore.Client, storageClient *cloudstorage.Client, bucket string) (repositories.HealthRepository, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if storageClient != nil && strings.TrimSpace(bucket) != "" {
		handle := storageClient.Bucket(bucket)
		checks = append(checks, repositories.DependencyCheck{
			Name:    "storage",
			Timeout: 2 * time.Second,
			Check: func(ctx context.Context) error {
				_, err := handle.Attrs(ctx)
				return err
			},
		})
	}
	return repositories.NewDependencyHealthRepository(checks)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_GOOGLE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	credentialsFile := lookup("API_GOOGLE_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames marks secrets as mandatory only when the deployment
// references them, so an unset optional integration never blocks startup but
// a secret reference that resolves to an empty value does.
func requiredSecretNames(env map[string]string) []string {
	var required []string
	if strings.TrimSpace(env["API_AI_GEMINI_API_KEY"]) != "" {
		required = append(required, "AI.GeminiAPIKey")
	}
	if strings.TrimSpace(env["API_MUSEUMS_RIJKSMUSEUM_API_KEY"]) != "" {
		required = append(required, "Museums.RijksmuseumAPIKey")
	}
	return required
}
