package cmdutil

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"gaplessohlcv/archive"
	"gaplessohlcv/bars"
	"gaplessohlcv/config"
	"gaplessohlcv/fsio"
	"gaplessohlcv/httpx"
	"gaplessohlcv/ingest"
	"gaplessohlcv/obslog"
	"gaplessohlcv/rest"
	"gaplessohlcv/store"
	"gaplessohlcv/symbols"

	"go.uber.org/zap"
)

// Runtime bundles the collaborators every cmd/* binary wires together. It
// is bootstrap glue, not a component of its own — the binaries differ only
// in which of Runtime's pieces they invoke.
type Runtime struct {
	Config   *config.Config
	Logger   *zap.Logger
	HTTP     *httpx.Client
	Archive  *archive.Fetcher
	REST     *rest.Client
	Loader   *store.Loader
	Reader   *store.Reader
	Schema   *store.SchemaValidator
	Registry *symbols.Registry
	Query    *ingest.Query
	Encoder  fsio.Encoder
}

// NewRuntime loads configuration from configPath, bootstraps the logger,
// and wires every collaborator. strict_schema (spec §6.7) gates whether a
// schema mismatch at startup is fatal.
func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := obslog.New(cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("cmdutil: build logger: %w", err)
	}

	httpClient := httpx.New(time.Duration(cfg.HTTPTimeoutSeconds)*time.Second, cfg.MaxRetries)
	archiveFetcher := archive.New(httpClient, cfg.ArchiveRoot)
	restClient := rest.New(httpClient, cfg.RESTSpotRoot, cfg.RESTFuturesRoot, cfg.ChunkSizeSpot, cfg.ChunkSizeFutures)

	conn, err := store.Open(ctx, fmt.Sprintf("%s:%d", cfg.DBHost, cfg.DBPort), cfg.DBDatabase, cfg.DBUser, cfg.DBPassword, cfg.DBSecure)
	if err != nil {
		return nil, err
	}

	schemaValidator := store.NewSchemaValidator(conn)
	if err := schemaValidator.Validate(ctx); err != nil && cfg.StrictSchema {
		return nil, err
	}

	loader := store.NewLoader(conn, 10_000)
	reader := store.NewReader(loader)
	registry := symbols.New(&symbols.HTTPSource{Client: httpClient, URL: cfg.RESTSpotRoot + "/exchangeInfo"})

	q := &ingest.Query{
		Archive:     archiveFetcher,
		REST:        restClient,
		Presence:    loader,
		Sink:        loader,
		Reader:      reader,
		Registry:    registry,
		Concurrency: int64(cfg.ParallelGapWorkers),
		Logger:      logger,
	}

	var encoder fsio.Encoder
	switch cfg.OutputFormat {
	case "parquet":
		encoder = fsio.ParquetEncoder{}
	default:
		encoder = fsio.CSVEncoder{}
	}

	return &Runtime{
		Config:   cfg,
		Logger:   logger,
		HTTP:     httpClient,
		Archive:  archiveFetcher,
		REST:     restClient,
		Loader:   loader,
		Reader:   reader,
		Schema:   schemaValidator,
		Registry: registry,
		Query:    q,
		Encoder:  encoder,
	}, nil
}

// WriteOutput renders rows through Encoder and writes them atomically (C9)
// under Config.OutputDir. A blank OutputDir disables the file-output
// surface entirely — query/ingest still return rows in-process either way.
func (rt *Runtime) WriteOutput(symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, rows []bars.Bar, generatedAt time.Time) error {
	if rt.Config.OutputDir == "" {
		return nil
	}
	enc := rt.Encoder
	if csvEnc, ok := enc.(fsio.CSVEncoder); ok {
		csvEnc.GeneratedAt = generatedAt
		enc = csvEnc
	}
	content, err := enc.Encode(symbol, tf, instrumentType, rows)
	if err != nil {
		return err
	}
	ext := rt.Config.OutputFormat
	if ext == "" {
		ext = "csv"
	}
	path := filepath.Join(rt.Config.OutputDir, fmt.Sprintf("%s_%s_%s.%s", symbol, tf, instrumentType, ext))
	return fsio.WriteAtomic(path, content)
}
