package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/community-scripts/ftt-cycle-dashboard/internal/cycles"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	ListenAddr string
	Title      string

	// Data source
	DataPath        string
	DataSheet       string
	DataDSN         string // SQL source; takes precedence over DataPath
	DataTable       string
	TimestampColumn string
	MachineColumn   string

	// Snapshot cache for the parsed table
	SnapshotCacheEnabled bool
	RedisURL             string
	EnableRedis          bool
	CacheTTL             time.Duration

	EnableReqLogging bool // default false
}

const noDataWarning = "No data for selected filters."

func loadConfig() Config {
	return Config{
		ListenAddr: env("LISTEN_ADDR", ":8080"),
		Title:      env("DASHBOARD_TITLE", "FTT Cycle Market Dashboard"),

		DataPath:        env("DATA_PATH", "FTT Cycle Data 202511_anonymization.xlsx"),
		DataSheet:       env("DATA_SHEET", "anonymized_data"),
		DataDSN:         env("DATA_DSN", ""),
		DataTable:       env("DATA_TABLE", "cycles"),
		TimestampColumn: env("TIMESTAMP_COLUMN", cycles.DefaultTimestampColumn),
		MachineColumn:   env("MACHINE_COLUMN", cycles.DefaultMachineColumn),

		SnapshotCacheEnabled: envBool("ENABLE_SNAPSHOT_CACHE", false),
		RedisURL:             env("REDIS_URL", ""),
		EnableRedis:          envBool("ENABLE_REDIS", false),
		CacheTTL:             time.Duration(envInt("CACHE_TTL_SECONDS", 86400)) * time.Second,

		EnableReqLogging: envBool("ENABLE_REQUEST_LOGGING", false),
	}
}

func (c Config) columns() cycles.Options {
	return cycles.Options{TimestampColumn: c.TimestampColumn, MachineColumn: c.MachineColumn}
}

// openSource returns the configured record source and a func releasing it.
func openSource(ctx context.Context, cfg Config) (cycles.Source, func(), error) {
	if cfg.DataDSN == "" {
		return cycles.NewSpreadsheetSource(cfg.DataPath, cfg.DataSheet, cfg.columns()), func() {}, nil
	}
	db, driver, err := cycles.OpenDSN(ctx, cfg.DataDSN)
	if err != nil {
		return nil, nil, err
	}
	src := cycles.NewSQLSource(db, driver, cfg.DataTable, cfg.columns())
	return src, func() { db.Close() }, nil
}

func main() {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var snapshots cycles.SnapshotStore
	if cfg.SnapshotCacheEnabled {
		cache := NewCache(CacheConfig{
			RedisURL:    cfg.RedisURL,
			EnableRedis: cfg.EnableRedis,
			DefaultTTL:  cfg.CacheTTL,
		})
		defer cache.Close()
		snapshots = cache
	}
	loader := cycles.NewLoader(snapshots, cfg.CacheTTL)

	src, release, err := openSource(ctx, cfg)
	if err != nil {
		log.Fatalf("[LOAD] open source: %v", err)
	}
	defer release()

	// Load eagerly so the first page view does not pay for the parse.
	start := time.Now()
	table, err := loader.Load(ctx, src)
	if err != nil {
		log.Fatalf("[LOAD] %s: %v", src.Key(), err)
	}
	log.Printf("[LOAD] %s: %d records, %d machines (took %v)",
		src.Key(), table.Len(), len(table.Machines()), time.Since(start).Round(time.Millisecond))

	app := &App{cfg: cfg, loader: loader, source: src}
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           securityHeaders(requestLogger(cfg.EnableReqLogging, app.routes())),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("cycle-dashboard listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	log.Println("cycle-dashboard stopped")
}

// App serves the dashboard. Every request recomputes its response from the
// memoized table and the query string.
type App struct {
	cfg    Config
	loader *cycles.Loader
	source cycles.Source
}

func (a *App) table(ctx context.Context) (*cycles.Table, error) {
	return a.loader.Load(ctx, a.source)
}

type filtersResponse struct {
	Machines     []string `json:"machines"`
	MinDate      string   `json:"min_date"`
	MaxDate      string   `json:"max_date"`
	TotalRecords int      `json:"total_records"`
}

type dashboardResponse struct {
	cycles.Summary
	Start   string `json:"start"`
	End     string `json:"end"`
	Warning string `json:"warning,omitempty"`
}

type recordsResponse struct {
	Columns []string   `json:"columns"`
	Index   []int      `json:"index"` // source row position of each row
	Rows    [][]string `json:"rows"`
	Total   int        `json:"total"`
	Page    int        `json:"page"`
	Limit   int        `json:"limit"`
}

func (a *App) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Dashboard page
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		_, _ = w.Write([]byte(DashboardHTML(a.cfg.Title)))
	})

	// Sidebar defaults: every machine, full observed range
	mux.HandleFunc("/api/filters", func(w http.ResponseWriter, r *http.Request) {
		t, ok := a.loadTable(w, r)
		if !ok {
			return
		}
		resp := filtersResponse{Machines: t.Machines(), TotalRecords: t.Len()}
		if first, last, ok := t.Bounds(); ok {
			resp.MinDate = first.Format(cycles.DateLayout)
			resp.MaxDate = last.Format(cycles.DateLayout)
		}
		writeJSON(w, resp)
	})

	mux.HandleFunc("/api/dashboard", func(w http.ResponseWriter, r *http.Request) {
		t, sel, ok := a.selection(w, r)
		if !ok {
			return
		}
		resp := dashboardResponse{
			Summary: cycles.Summarize(cycles.Filter(t, sel)),
			Start:   sel.Start.Format(cycles.DateLayout),
			End:     sel.End.Format(cycles.DateLayout),
		}
		if resp.Empty {
			resp.Warning = noDataWarning
		}
		writeJSON(w, resp)
	})

	mux.HandleFunc("/api/records", func(w http.ResponseWriter, r *http.Request) {
		t, sel, ok := a.selection(w, r)
		if !ok {
			return
		}
		page, limit, err := pagination(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		view := cycles.Filter(t, sel)
		resp := recordsResponse{
			Columns: t.Columns,
			Index:   make([]int, 0),
			Rows:    make([][]string, 0),
			Total:   len(view),
			Page:    page,
			Limit:   limit,
		}
		from, to := 0, len(view)
		if limit > 0 {
			from = min((page-1)*limit, len(view))
			to = min(from+limit, len(view))
		}
		for _, rec := range view[from:to] {
			resp.Index = append(resp.Index, rec.Row)
			resp.Rows = append(resp.Rows, rec.Values)
		}
		writeJSON(w, resp)
	})

	mux.HandleFunc("/chart/daily.png", func(w http.ResponseWriter, r *http.Request) {
		t, sel, ok := a.selection(w, r)
		if !ok {
			return
		}
		writeChart(w, renderDailyChart, cycles.DailyCounts(cycles.Filter(t, sel)))
	})

	mux.HandleFunc("/chart/machines.png", func(w http.ResponseWriter, r *http.Request) {
		t, sel, ok := a.selection(w, r)
		if !ok {
			return
		}
		writeChart(w, renderMachineChart, cycles.MachineCounts(cycles.Filter(t, sel)))
	})

	return mux
}

func (a *App) loadTable(w http.ResponseWriter, r *http.Request) (*cycles.Table, bool) {
	t, err := a.table(r.Context())
	if err != nil {
		log.Printf("[LOAD] %s: %v", a.source.Key(), err)
		http.Error(w, "failed to load data", http.StatusInternalServerError)
		return nil, false
	}
	return t, true
}

func (a *App) selection(w http.ResponseWriter, r *http.Request) (*cycles.Table, cycles.Selection, bool) {
	t, ok := a.loadTable(w, r)
	if !ok {
		return nil, cycles.Selection{}, false
	}
	sel, err := parseSelection(r.URL.Query(), t)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, cycles.Selection{}, false
	}
	return t, sel, true
}

// parseSelection reads repeated machine parameters and start/end days. A
// missing machine parameter selects every machine; machine= alone selects
// none. Missing days default to the observed range.
func parseSelection(q url.Values, t *cycles.Table) (cycles.Selection, error) {
	def := cycles.DefaultSelection(t)

	machines := t.Machines()
	if vals, ok := q["machine"]; ok {
		machines = machines[:0:0]
		for _, v := range vals {
			if v != "" {
				machines = append(machines, v)
			}
		}
	}

	start, end := def.Start, def.End
	if v := q.Get("start"); v != "" {
		d, err := time.Parse(cycles.DateLayout, v)
		if err != nil {
			return cycles.Selection{}, fmt.Errorf("invalid start, must be YYYY-MM-DD")
		}
		start = d
	}
	if v := q.Get("end"); v != "" {
		d, err := time.Parse(cycles.DateLayout, v)
		if err != nil {
			return cycles.Selection{}, fmt.Errorf("invalid end, must be YYYY-MM-DD")
		}
		end = d
	}
	return cycles.NewSelection(machines, start, end), nil
}

func pagination(q url.Values) (page, limit int, err error) {
	page = 1
	if v := q.Get("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 1 {
			return 0, 0, fmt.Errorf("invalid page")
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			return 0, 0, fmt.Errorf("invalid limit")
		}
	}
	return page, limit, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] encode response: %v", err)
	}
}

func writeChart[T any](w http.ResponseWriter, render func(w io.Writer, data []T) error, data []T) {
	var buf bytes.Buffer
	if err := render(&buf, data); err != nil {
		if errors.Is(err, errNoChartData) {
			http.Error(w, noDataWarning, http.StatusNotFound)
			return
		}
		log.Printf("[CHART] render failed: %v", err)
		http.Error(w, "failed to render chart", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// requestLogger tags every response with an X-Request-ID and, when enabled,
// logs one line per request.
func requestLogger(enabled bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		if !enabled {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[HTTP] %s %s %s (%v)", id, r.Method, r.URL.RequestURI(), time.Since(start).Round(time.Microsecond))
	})
}

func env(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	var i int
	_, _ = fmt.Sscanf(v, "%d", &i)
	if i == 0 && v != "0" {
		return def
	}
	return i
}
func envBool(k string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
