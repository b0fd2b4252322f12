package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"spot-risk-engine/internal/backtest"
	"spot-risk-engine/internal/config"
	"spot-risk-engine/internal/decision"
	"spot-risk-engine/internal/observability"
	"spot-risk-engine/internal/orchestrator"
	"spot-risk-engine/internal/reporting"
	"spot-risk-engine/internal/storage"
	chstore "spot-risk-engine/internal/storage/clickhouse"
	"spot-risk-engine/internal/storage/memory"
	"spot-risk-engine/internal/storage/migrations"
	pgstore "spot-risk-engine/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Input
	configPath := flag.String("config", "", "JSON config file (defaults when empty)")
	symbolsFlag := flag.String("symbols", "", "Comma-separated symbols (all stored symbols when empty)")
	interval := flag.String("interval", "", "Candle interval (config default when empty)")
	from := flag.String("from", "", "Range start, RFC3339 or Unix ms")
	to := flag.String("to", "", "Range end, RFC3339 or Unix ms")
	csvPath := flag.String("csv", "", "Import candles for a single -symbols entry from CSV before running")

	// Mode
	validate := flag.Bool("validate", false, "Run k-fold validation over the config grid instead of a single backtest")
	concurrency := flag.Int("concurrency", 4, "Symbols processed in parallel")

	// Storage
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	migrate := flag.Bool("migrate", false, "Apply schema migrations before running")
	persist := flag.Bool("persist", true, "Persist runs, trades and summaries")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")
	outDir := flag.String("out", "", "Write Markdown and CSV reports to this directory")
	metricsAddr := flag.String("metrics-addr", "", "Serve /metrics and /health on this address")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatalf("load config: %v", err)
		}
	}
	if *interval == "" {
		*interval = cfg.Simulation.Interval
	}

	window := backtest.Request{Interval: *interval}
	var err error
	if window.From, err = parseTime(*from); err != nil {
		logger.Fatalf("invalid -from: %v", err)
	}
	if window.To, err = parseTime(*to); err != nil {
		logger.Fatalf("invalid -to: %v", err)
	}
	if window.From != 0 && window.To == 0 {
		window.To = time.Now().UnixMilli()
	}

	symbols := splitSymbols(*symbolsFlag)
	if *csvPath != "" {
		*useMemory = *useMemory || (*postgresDSN == "" && *clickhouseDSN == "")
		if len(symbols) != 1 {
			logger.Fatal("-csv requires exactly one -symbols entry")
		}
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required when not using --use-memory")
	}

	// Create context with cancellation on shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, *migrate)
	if err != nil {
		logger.Fatalf("create stores: %v", err)
	}
	defer cleanup()

	if *csvPath != "" {
		candles, skipped, err := readCandlesFile(*csvPath)
		if err != nil {
			logger.Fatalf("read csv: %v", err)
		}
		if err := stores.candles.InsertBulk(ctx, symbols[0], *interval, candles); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			logger.Fatalf("import candles: %v", err)
		}
		logger.Printf("imported %d candles for %s (%d rows skipped)", len(candles), symbols[0], skipped)
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	opts := backtest.Options{
		Candles:    stores.candles,
		StoreLabel: stores.label,
		Metrics:    observability.DefaultMetrics,
		Logger:     logger,
	}
	if *persist {
		opts.Runs = stores.runs
		opts.Trades = stores.trades
		opts.Summaries = stores.summaries
	}
	runner, err := backtest.NewRunner(cfg, opts)
	if err != nil {
		logger.Fatalf("create runner: %v", err)
	}

	orch := orchestrator.New(orchestrator.Options{
		Runner:      runner,
		Candles:     stores.candles,
		Concurrency: *concurrency,
		Logger:      log.New(os.Stderr, "[orchestrator] ", log.LstdFlags),
	})

	mode := orchestrator.ModeBacktest
	if *validate {
		mode = orchestrator.ModeValidation
	}
	result, err := orch.Run(ctx, mode, window, symbols)
	if err != nil {
		logger.Fatalf("%s failed: %v", mode, err)
	}

	gen := reporting.NewGenerator(stores.runs, stores.trades, stores.summaries).
		WithThresholds(cfg.Validation.Decision)

	if *outputJSON {
		out, err := json.MarshalIndent(jsonResult(result), "", "  ")
		if err != nil {
			logger.Fatalf("marshal result: %v", err)
		}
		fmt.Println(string(out))
	}

	for _, sr := range result.Symbols {
		if sr.Err != nil {
			continue
		}
		report, extra, err := buildReport(gen, sr)
		if err != nil {
			logger.Printf("report %s: %v", sr.Symbol, err)
			continue
		}
		md := reporting.RenderMarkdown(report) + extra
		if !*outputJSON {
			fmt.Println(md)
		}
		if *outDir != "" {
			if err := writeReports(*outDir, sr, report, md); err != nil {
				logger.Printf("write reports %s: %v", sr.Symbol, err)
			}
		}
	}

	if mode == orchestrator.ModeValidation {
		logger.Printf("ready for live: %d of %d symbols %v", len(result.GO), result.Succeeded, result.GO)
	}
	if result.Failed > 0 {
		logger.Printf("%d of %d symbols failed", result.Failed, len(result.Symbols))
		os.Exit(1)
	}
}

// buildReport renders one symbol; validation reports get the GO/NO-GO
// checklist of the best candidate appended.
func buildReport(gen *reporting.Generator, sr orchestrator.SymbolResult) (*reporting.Report, string, error) {
	if sr.Backtest != nil {
		return gen.FromResult(sr.Backtest.Run.StrategyID, sr.Backtest.Result), "", nil
	}
	report, err := gen.FromValidation(sr.Validation.Report)
	if err != nil {
		return nil, "", err
	}
	extra := ""
	if sr.Validation.Decision != nil {
		extra = "\n" + decision.RenderMarkdown(sr.Validation.Decision)
	}
	return report, extra, nil
}

func writeReports(dir string, sr orchestrator.SymbolResult, report *reporting.Report, md string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	base := filepath.Join(dir, strings.ToLower(sr.Symbol))
	if err := os.WriteFile(base+".md", []byte(md), 0o644); err != nil {
		return err
	}
	if sr.Backtest != nil {
		if err := os.WriteFile(base+"_runs.csv", []byte(reporting.RenderRunsCSV(report.Runs)), 0o644); err != nil {
			return err
		}
		return os.WriteFile(base+"_trades.csv", []byte(reporting.RenderTradesCSV(sr.Backtest.Result.Trades)), 0o644)
	}
	return os.WriteFile(base+"_candidates.csv", []byte(reporting.RenderCandidatesCSV(report.Candidates)), 0o644)
}

// symbolJSON is the machine-readable per-symbol output.
type symbolJSON struct {
	Symbol         string  `json:"symbol"`
	Error          string  `json:"error,omitempty"`
	RunID          string  `json:"run_id,omitempty"`
	StrategyID     string  `json:"strategy_id,omitempty"`
	Candidate      string  `json:"candidate,omitempty"`
	Trades         int     `json:"trades"`
	WinRate        float64 `json:"win_rate"`
	PnlPercent     float64 `json:"pnl_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	Expectancy     float64 `json:"expectancy_r,omitempty"`
	BootstrapP5    float64 `json:"bootstrap_p5,omitempty"`
	BootstrapP95   float64 `json:"bootstrap_p95,omitempty"`
	SafeForLive    bool    `json:"safe_for_live"`
	Decision       string  `json:"decision,omitempty"`
}

func jsonResult(r *orchestrator.RunResult) []symbolJSON {
	out := make([]symbolJSON, 0, len(r.Symbols))
	for _, sr := range r.Symbols {
		row := symbolJSON{Symbol: sr.Symbol}
		switch {
		case sr.Err != nil:
			row.Error = sr.Err.Error()
		case sr.Backtest != nil:
			res := sr.Backtest.Result
			row.RunID = sr.Backtest.Run.RunID
			row.StrategyID = sr.Backtest.Run.StrategyID
			row.Trades = len(res.Trades)
			row.WinRate = res.WinRate()
			row.PnlPercent = res.PnlPercent
			row.MaxDrawdownPct = res.MaxDrawdownPct
		case sr.Validation != nil:
			best := sr.Validation.Report.Best()
			if best == nil {
				break
			}
			if sr.Validation.Run != nil {
				row.RunID = sr.Validation.Run.RunID
			}
			row.StrategyID = best.Score.StrategyID
			row.Candidate = best.Score.Candidate.Name
			row.Trades = len(best.Result.Trades)
			row.WinRate = best.Result.WinRate()
			row.PnlPercent = best.Result.PnlPercent
			row.MaxDrawdownPct = best.Result.MaxDrawdownPct
			row.Expectancy = best.RStats.Expectancy
			row.BootstrapP5 = best.Bootstrap.P5
			row.BootstrapP95 = best.Bootstrap.P95
			row.SafeForLive = best.Bootstrap.SafeForLive
			if sr.Validation.Decision != nil {
				row.Decision = string(sr.Validation.Decision.Decision)
			}
		}
		out = append(out, row)
	}
	return out
}

type allStores struct {
	label     string
	candles   storage.CandleStore
	runs      storage.RunStore
	trades    storage.TradeStore
	summaries storage.SummaryStore
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory, migrate bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			label:     "memory",
			candles:   memory.NewCandleStore(),
			runs:      memory.NewRunStore(),
			trades:    memory.NewTradeStore(),
			summaries: memory.NewSummaryStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
	}

	// ClickHouse
	var chConn *chstore.Conn
	if migrate {
		chConn, err = migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	} else {
		chConn, err = chstore.NewConn(ctx, clickhouseDSN)
	}
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	stores := &allStores{
		label: "postgres+clickhouse",

		// PostgreSQL stores (runs + trades)
		runs:   pgstore.NewRunStore(pool),
		trades: pgstore.NewTradeStore(pool),

		// ClickHouse stores (candles + summaries)
		candles:   chstore.NewCandleStore(chConn),
		summaries: chstore.NewSummaryStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// serveMetrics starts the HTTP server for health and metrics.
func serveMetrics(addr string, logger *log.Logger) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseTime accepts RFC3339 or Unix milliseconds; empty means 0.
func parseTime(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}
	var ms int64
	if _, err := fmt.Sscanf(s, "%d", &ms); err != nil || ms <= 0 {
		return 0, fmt.Errorf("expected RFC3339 or Unix ms, got %q", s)
	}
	return ms, nil
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
