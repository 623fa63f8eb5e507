package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/VictorGavo/milvus-search/features/collection"
	"github.com/VictorGavo/milvus-search/features/document"
	"github.com/VictorGavo/milvus-search/features/query"
	"github.com/VictorGavo/milvus-search/internal/config"
	"github.com/VictorGavo/milvus-search/internal/gemini"
	"github.com/VictorGavo/milvus-search/internal/logger"
	"github.com/VictorGavo/milvus-search/internal/middleware"
	"github.com/VictorGavo/milvus-search/internal/pdf"
	"github.com/VictorGavo/milvus-search/internal/segment"
	"github.com/VictorGavo/milvus-search/internal/vector"
	"github.com/VictorGavo/milvus-search/internal/worker"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	milvus "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/nsqio/go-nsq"
)

func main() {
	// Initialize structured logger with correlation id propagation
	handler := logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(slog.New(handler))

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	// 2. Database Connection
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("failed to open db connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Retry connection
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1, "max_attempts", cfg.BootstrapRetryAttempts)
		time.Sleep(retryDelay)
	}

	if err := db.Ping(); err != nil {
		slog.Error("failed to ping db after retries", "error", err)
		os.Exit(1)
	}

	// 3. Run Migrations
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		slog.Error("failed to create migration driver", "error", err)
		os.Exit(1)
	}

	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		slog.Error("failed to create migration instance", "error", err)
		os.Exit(1)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations applied successfully")

	// 4. Milvus Connection & Collection
	ctx := context.Background()
	milvusClient, err := milvus.NewClient(ctx, milvus.Config{
		Address:  cfg.MilvusAddr,
		Username: cfg.MilvusUser,
		Password: cfg.MilvusPass,
	})
	if err != nil {
		slog.Error("failed to create milvus client", "error", err, "address", cfg.MilvusAddr)
		os.Exit(1)
	}
	defer milvusClient.Close()

	vecStore := vector.NewStore(milvusClient, vector.IndexParams{
		NList:  cfg.IndexNList,
		NProbe: cfg.SearchNProbe,
	})

	// Retry collection ensure; Milvus may still be starting up.
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if _, err = vecStore.EnsureCollection(ctx, cfg.CollectionName, cfg.CollectionDim, vector.PolicyReuse); err == nil {
			slog.Info("collection ensured", "collection", cfg.CollectionName, "dim", cfg.CollectionDim)
			break
		}
		slog.Warn("failed to ensure collection, retrying...", "attempt", i+1, "error", err)
		time.Sleep(retryDelay)
	}
	if err != nil {
		slog.Error("failed to ensure collection after retries", "error", err)
		os.Exit(1)
	}

	// 5. Gemini Adapters
	if cfg.GeminiAPIKey == "" {
		slog.Error("GEMINI_API_KEY is required")
		os.Exit(1)
	}
	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
	if err != nil {
		slog.Error("failed to create gemini embedder", "error", err)
		os.Exit(1)
	}
	defer embedder.Close()

	chat, err := gemini.NewChat(ctx, cfg.GeminiAPIKey, cfg.ChatModel)
	if err != nil {
		slog.Error("failed to create gemini chat client", "error", err)
		os.Exit(1)
	}
	defer chat.Close()

	// 6. NSQ Producer
	nsqCfg := nsq.NewConfig()
	nsqProducer, err := nsq.NewProducer(cfg.NSQDHost, nsqCfg)
	if err != nil {
		slog.Error("failed to create NSQ producer", "error", err)
		os.Exit(1)
	}

	// Pre-create topics to avoid consumer startup errors.
	// NSQ creates topics lazily on publish, but consumers querying lookupd
	// will fail 404 until then, so we hit the nsqd http api explicitly.
	go preCreateTopics(cfg.NSQDHTTP, config.TopicIngestTask, config.TopicIngestResult)

	// 7. Features
	docRepo := document.NewPostgresRepo(db)
	docService := document.NewService(docRepo, embedder, vecStore, pdf.Read, document.Options{
		Collection:       cfg.CollectionName,
		Dimension:        cfg.CollectionDim,
		Strategy:         segment.Strategy(cfg.SegmentStrategy),
		HeadingFontSize:  cfg.HeadingFontSize,
		MinSectionLength: cfg.MinSectionLength,
	})
	docHandler := document.NewHandler(docService, nsqProducer, cfg.UploadDir, cfg.MaxUploadSizeMB)

	collectionHandler := collection.NewHandler(vecStore, cfg.CollectionDim)

	queryLogger, err := query.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = query.NewQueryLogger(os.Stdout)
	}

	sessions := query.NewSessionStore(cfg.SessionMaxEntries,
		time.Duration(cfg.SessionTTLMinutes)*time.Minute)
	queryService := query.NewService(embedder, vecStore, docRepo, chat, sessions,
		queryLogger, cfg.CollectionName, cfg.DefaultTopK)
	queryHandler := query.NewHandler(queryService)

	// 8. Ingest Worker
	if cfg.EnableIngestWorker {
		ingestConsumer := worker.NewIngestConsumer(docService, nsqProducer, config.TopicIngestResult)

		consumer, err := nsq.NewConsumer(config.TopicIngestTask, "worker", nsq.NewConfig())
		if err != nil {
			slog.Error("failed to create NSQ consumer for ingest tasks", "error", err)
		} else {
			consumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
				return ingestConsumer.HandleMessage(m)
			}))
			if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
				slog.Error("failed to connect to NSQLookupd", "error", err)
			} else {
				slog.Info("NSQ ingest consumer connected")
			}
		}
	}

	if !cfg.EnableAPI {
		slog.Info("api disabled, running worker only")
		select {}
	}

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	http.Handle("POST /collections", middleware.CorrelationID(enableCORS(collectionHandler.Create)))
	http.Handle("POST /documents", middleware.CorrelationID(enableCORS(docHandler.Upload)))
	http.Handle("POST /documents/async", middleware.CorrelationID(enableCORS(docHandler.UploadAsync)))
	http.Handle("POST /query", middleware.CorrelationID(enableCORS(queryHandler.Ask)))
	http.Handle("POST /discuss", middleware.CorrelationID(enableCORS(queryHandler.Converse)))

	// 9. Start Server
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	slog.Info("server starting", "port", cfg.ServerPort)
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func preCreateTopics(nsqdHTTP string, topics ...string) {
	// Wait for nsqd to be ready
	time.Sleep(2 * time.Second)

	for _, topic := range topics {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil)
		if err != nil {
			slog.Warn("failed to pre-create topic", "topic", topic, "error", err, "url", url)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			slog.Info("topic pre-created", "topic", topic)
		}
	}
}
