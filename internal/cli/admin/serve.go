package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/doctalk/internal/api/handlers"
	"github.com/cloo-solutions/doctalk/internal/config"
	"github.com/cloo-solutions/doctalk/internal/domain"
	"github.com/cloo-solutions/doctalk/internal/gemini"
	"github.com/cloo-solutions/doctalk/internal/jobs"
	"github.com/cloo-solutions/doctalk/internal/openai"
	"github.com/cloo-solutions/doctalk/internal/repository"
	"github.com/cloo-solutions/doctalk/internal/server"
	"github.com/cloo-solutions/doctalk/internal/service"
	"github.com/cloo-solutions/doctalk/internal/storage"
	"github.com/cloo-solutions/doctalk/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the doctalk API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// The session store manages its own schema versioning, including
	// adoption of pre-session flat message logs.
	if err := repository.NewSessionMigrator(pool).Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate session store: %w", err)
	}

	embedDims := embeddingDimensions(cfg)
	if err := repository.EnsureEmbeddingDimension(ctx, pool, embedDims); err != nil {
		return fmt.Errorf("failed to align embedding dimension: %w", err)
	}

	embedder, generator, closeProvider, err := buildProvider(ctx, cfg, embedDims)
	if err != nil {
		return fmt.Errorf("failed to build LLM provider: %w", err)
	}
	if closeProvider != nil {
		defer closeProvider()
	}

	chunkRepo := repository.NewChunkRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	indexCfg := service.IndexConfig{
		TopK: cfg.RetrievalTopK,
		Chunking: service.ChunkConfig{
			WindowChars: cfg.ChunkSize,
			Overlap:     cfg.ChunkOverlap,
			MinChars:    service.DefaultChunkConfig().MinChars,
		},
	}

	var indexSvc *service.IndexService
	if cfg.HasArchive() {
		archiveCfg := storage.DocumentArchiveConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		archive, err := storage.NewDocumentArchive(ctx, archiveCfg)
		if err != nil {
			return fmt.Errorf("failed to create document archive: %w", err)
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure archive bucket: %w", err)
		}
		log.Printf("document archive bucket '%s' ready", cfg.S3Bucket)
		indexSvc = service.NewIndexServiceWithArchive(chunkRepo, embedder, txRunner, archive, indexCfg)
	} else {
		indexSvc = service.NewIndexService(chunkRepo, embedder, txRunner, indexCfg)
	}

	rewriter := service.NewRewriterWithConfig(generator, service.RewriterConfig{
		HistoryWindow: cfg.HistoryWindow,
	})
	answerer := service.NewAnswererWithConfig(rewriter, indexSvc, generator, service.AnswererConfig{
		HistoryWindow: cfg.HistoryWindow,
	})
	chatSvc := service.NewChatServiceWithConfig(sessionRepo, answerer, txRunner, service.ChatConfig{
		HistoryWindow: cfg.HistoryWindow,
	})

	if _, err := chatSvc.EnsureDefaultSession(ctx); err != nil {
		return fmt.Errorf("failed to ensure default session: %w", err)
	}

	var titleWorker *jobs.Worker
	if cfg.HasProvider() {
		titleSvc := service.NewTitleService(sessionRepo, generator)
		titleWorker = jobs.NewWorker(jobs.NewTitleWorker(titleSvc), 30*time.Second)
		go titleWorker.Start(ctx)
		log.Println("title worker started")
	}

	routerCfg := server.RouterConfig{
		IndexHandler:   handlers.NewIndexHandler(indexSvc),
		SessionHandler: handlers.NewSessionHandler(chatSvc),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if titleWorker != nil {
		titleWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// embeddingDimensions resolves the vector dimension the configured provider
// will produce, falling back to the provider's model default.
func embeddingDimensions(cfg *config.Config) int {
	if cfg.EmbeddingDimensions > 0 {
		return cfg.EmbeddingDimensions
	}
	if cfg.LLMProvider == config.ProviderGemini {
		return gemini.DefaultEmbeddingDimensions
	}
	return openai.DefaultEmbeddingDimensions
}

// buildProvider constructs the embedding and generation provider for the
// configured backend. Without an API key the server still runs, with
// index and ask operations reporting the missing provider.
func buildProvider(ctx context.Context, cfg *config.Config, dimensions int) (service.EmbeddingProvider, service.GenerationProvider, func() error, error) {
	if !cfg.HasProvider() {
		log.Printf("no API key configured for provider %q, index and ask operations will fail", cfg.LLMProvider)
		p := &unconfiguredProvider{provider: cfg.LLMProvider}
		return p, p, nil, nil
	}

	switch cfg.LLMProvider {
	case config.ProviderGemini:
		client, err := gemini.NewClientWithConfig(ctx, gemini.Config{
			APIKey:         cfg.GeminiAPIKey,
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.EmbeddingModel,
			Dimensions:     dimensions,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		log.Println("using Gemini provider")
		return client, client, client.Close, nil
	default:
		client := openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			ChatModel:           cfg.ChatModel,
			EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
			EmbeddingDimensions: dimensions,
		})
		log.Println("using OpenAI provider")
		return client, client, nil, nil
	}
}

type unconfiguredProvider struct {
	provider string
}

func (p *unconfiguredProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, domain.NewEmbeddingError(fmt.Errorf("provider %q not configured: API key required", p.provider))
}

func (p *unconfiguredProvider) GenerateText(ctx context.Context, system string, history []domain.Turn, prompt string) (string, error) {
	return "", domain.NewGenerationError(fmt.Errorf("provider %q not configured: API key required", p.provider))
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
