package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/sitesage/sitesage/db"
	"github.com/sitesage/sitesage/internal/config"
	"github.com/sitesage/sitesage/internal/crawler"
	"github.com/sitesage/sitesage/internal/database"
	"github.com/sitesage/sitesage/internal/jobs"
	"github.com/sitesage/sitesage/internal/knowledge"
	"github.com/sitesage/sitesage/internal/rag"
	"github.com/sitesage/sitesage/internal/session"
	"github.com/sitesage/sitesage/internal/tenant"
)

// Setup initializes the application: migrations, connection pool, the AI
// stack and the domain services. Call Close to release resources.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, embedder, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Tenants = tenant.NewStore(pool, logger)
	a.Knowledge = knowledge.NewStore(pool, logger)
	a.Sessions = session.NewStore(pool, logger)
	a.Embedder = knowledge.NewEmbedder(embedder, logger)

	a.Crawler = crawler.New(a.Tenants, a.Knowledge, a.Embedder, logger)
	a.Jobs = jobs.NewRunner(a.Crawler, logger)

	retriever := rag.NewRetriever(a.Embedder, a.Knowledge, logger)
	completer := rag.NewGenkitCompleter(g, modelRef(cfg.ModelName))
	a.Composer = rag.NewComposer(retriever, completer, logger,
		rag.WithHistoryWindow(cfg.HistoryWindow))

	logger.Info("application initialized",
		"model", cfg.ModelName,
		"embedder", cfg.EmbedderModel)
	return a, nil
}

// provideGenkit initializes Genkit with the Gemini plugin and resolves the
// configured embedder.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, ai.Embedder, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: cfg.GeminiAPIKey}))
	if g == nil {
		return nil, nil, errors.New("initializing genkit with gemini provider")
	}

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	return g, embedder, nil
}

// modelRef qualifies a bare model name with the Gemini provider prefix.
func modelRef(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return "googleai/" + name
}
