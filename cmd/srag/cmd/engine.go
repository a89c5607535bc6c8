package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/srag-go/srag/internal/catalog"
	"github.com/srag-go/srag/internal/config"
	"github.com/srag-go/srag/internal/indexer"
	"github.com/srag-go/srag/internal/mlclient"
	"github.com/srag-go/srag/internal/mlsupervisor"
	"github.com/srag-go/srag/internal/model"
	"github.com/srag-go/srag/internal/session"
	"github.com/srag-go/srag/internal/vectorindex"
	"github.com/srag-go/srag/pkg/repl"
)

// app bundles every long-lived collaborator a subcommand needs: the
// catalog, the ML worker connection, the query engine, and the indexer.
// Built once per invocation and closed by the caller.
type app struct {
	cfg        *config.Config
	catalog    *catalog.Catalog
	client     *mlclient.Client
	vector     *vectorindex.VectorIndex
	supervisor *mlsupervisor.Supervisor
	indexer    *indexer.Indexer
	engine     *repl.Engine
}

func catalogPath(dataDir string) string {
	return filepath.Join(dataDir, "catalog.db")
}

func vectorDir(dataDir string) string {
	return filepath.Join(dataDir, "vectors")
}

// newApp loads configuration for root (the project directory being worked
// on), opens the catalog, ensures the ML worker is running, and wires
// together the indexer and query engine. Callers must call app.Close().
func newApp(ctx context.Context, root string) (*app, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(vectorDir(cfg.DataDir), 0o755); err != nil {
		return nil, err
	}

	cat, err := catalog.Open(catalogPath(cfg.DataDir))
	if err != nil {
		return nil, err
	}

	supervisor := mlsupervisor.New(cfg.DataDir)
	workerArgs := mlsupervisor.WorkerArgs{
		ModelsDir:     filepath.Join(cfg.DataDir, "models"),
		ModelFilename: cfg.LLM.ModelFilename,
		ModelURL:      cfg.LLM.ModelURL,
		LLMThreads:    cfg.LLM.Threads,
		ContextSize:   cfg.LLM.ContextSize,
		APIProvider:   string(cfg.API.Provider),
		APIModel:      cfg.API.Model,
		APIMaxTokens:  cfg.API.MaxTokens,
		RedactSecrets: cfg.API.RedactSecrets,
	}
	if err := supervisor.EnsureRunning(ctx, workerArgs); err != nil {
		_ = cat.Close()
		return nil, err
	}

	addr, err := mlsupervisor.ReadServiceAddr(supervisor.PortFilePath())
	if err != nil {
		_ = cat.Close()
		return nil, err
	}
	token, err := supervisor.ReadAuthToken()
	if err != nil {
		_ = cat.Close()
		return nil, err
	}
	client, err := mlclient.Dial(addr, token)
	if err != nil {
		_ = cat.Close()
		return nil, err
	}

	vidx, err := vectorindex.Open(vectorDir(cfg.DataDir), model.DefaultEmbeddingDim)
	if err != nil {
		_ = client.Close()
		_ = cat.Close()
		return nil, err
	}
	if err := vectorindex.Rebuild(cat, vidx); err != nil {
		_ = client.Close()
		_ = cat.Close()
		return nil, err
	}

	ix := indexer.New(cat, client, vidx, vectorDir(cfg.DataDir))
	sessions := session.NewManager(cat)

	engine := &repl.Engine{
		Catalog:   cat,
		Client:    client,
		VectorDir: vectorDir(cfg.DataDir),
		Sessions:  sessions,
		Query:     cfg.Query,
	}

	return &app{
		cfg:        cfg,
		catalog:    cat,
		client:     client,
		vector:     vidx,
		supervisor: supervisor,
		indexer:    ix,
		engine:     engine,
	}, nil
}

func (a *app) Close() {
	_ = a.client.Close()
	_ = a.catalog.Close()
}

func projectRoot() string {
	root, err := os.Getwd()
	if err != nil {
		return "."
	}
	return root
}
