package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tokenswap/internal/config"
	"tokenswap/internal/feed"
	feedcache "tokenswap/internal/feed/cache"
	"tokenswap/internal/feed/ratelimit"
	"tokenswap/internal/feed/retry"
	"tokenswap/internal/httpx"
	"tokenswap/internal/pricebook"
	"tokenswap/internal/session"
	"tokenswap/internal/swap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfgPath := os.Getenv("CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	httpClient := httpx.New(time.Duration(cfg.Feed.TimeoutSec) * time.Second)
	source := newFeedSource(cfg.Feed, httpClient)

	api := &api{
		logger:       logger,
		source:       source,
		sessions:     session.NewManager(time.Duration(cfg.Sessions.IdleTTLSec)*time.Second, cfg.Sessions.Max),
		fetchTimeout: time.Duration(cfg.Feed.TimeoutSec) * time.Second,
		book:         pricebook.Empty(),
	}

	// Initial fetch. A dead feed is not fatal: serve an empty token
	// list until a refresh succeeds.
	ctx, cancel := context.WithTimeout(context.Background(), api.fetchTimeout)
	if records, err := source.Fetch(ctx); err != nil {
		logger.Warn("initial feed fetch failed, starting with empty book", zap.Error(err))
	} else {
		api.replaceBook(pricebook.Normalize(records))
	}
	cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/tokens", api.handleTokens)
	mux.HandleFunc("/api/prices", api.handlePrices)
	mux.HandleFunc("/api/refresh", api.handleRefresh)
	mux.HandleFunc("/api/sessions", api.handleCreateSession)
	mux.HandleFunc("/api/sessions/", api.handleSession)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(withGzip(api.recoverPanic(limitBody(mux)))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.Int("tokens", api.currentBook().Len()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	// graceful shutdown
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
}

// newFeedSource builds the decorated fetch chain: client -> rate limit
// -> retries -> snapshot cache.
func newFeedSource(cfg config.Feed, httpClient *httpx.Client) feed.Source {
	var s feed.Source = feed.NewClient(
		feed.WithEndpoint(cfg.Endpoint),
		feed.WithHTTPClient(httpClient),
	)
	if cfg.MaxRequestsPerMinute > 0 {
		rate := float64(cfg.MaxRequestsPerMinute) / 60.0
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s = &ratelimit.TokenBucketSource{S: s, TB: ratelimit.NewTokenBucket(rate, burst)}
	} else if cfg.MinRequestIntervalSec > 0 {
		s = &ratelimit.MinInterval{S: s, Interval: time.Duration(cfg.MinRequestIntervalSec) * time.Second}
	}
	if cfg.MaxRetries > 0 {
		s = &retry.Source{S: s, MaxRetries: cfg.MaxRetries}
	}
	if cfg.CacheTTLSeconds > 0 {
		s = &feedcache.Source{S: s, TTL: time.Duration(cfg.CacheTTLSeconds) * time.Second}
	}
	return s
}

type api struct {
	logger       *zap.Logger
	source       feed.Source
	sessions     *session.Manager
	fetchTimeout time.Duration

	mu   sync.RWMutex
	book *pricebook.Book
}

func (a *api) currentBook() *pricebook.Book {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.book
}

func (a *api) replaceBook(b *pricebook.Book) {
	a.mu.Lock()
	a.book = b
	a.mu.Unlock()
	a.sessions.SetBook(b)
}

type tokensResponse struct {
	Tokens []string `json:"tokens"`
}

func (a *api) handleTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tokens := a.currentBook().Tokens()
	if tokens == nil {
		tokens = []string{}
	}
	writeJSON(w, http.StatusOK, tokensResponse{Tokens: tokens})
}

func (a *api) handlePrices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": a.currentBook().Prices()})
}

func (a *api) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.fetchTimeout)
	defer cancel()

	records, err := a.source.Fetch(ctx)
	if err != nil {
		a.logger.Warn("feed refresh failed", zap.Error(err))
		http.Error(w, "feed unavailable", http.StatusBadGateway)
		return
	}
	book := pricebook.Normalize(records)
	a.replaceBook(book)
	a.logger.Info("price book replaced", zap.Int("tokens", book.Len()))
	writeJSON(w, http.StatusOK, tokensResponse{Tokens: book.Tokens()})
}

type sessionResponse struct {
	ID    string     `json:"id"`
	State swap.State `json:"state"`
}

type amountResponse struct {
	ID      string     `json:"id"`
	Applied bool       `json:"applied"`
	State   swap.State `json:"state"`
}

func (a *api) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s := a.sessions.Create(a.currentBook())
	writeJSON(w, http.StatusCreated, sessionResponse{ID: s.ID, State: s.State()})
}

func (a *api) handleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	id := parts[0]
	s, ok := a.sessions.Get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, sessionResponse{ID: s.ID, State: s.State()})
		case http.MethodDelete:
			a.sessions.Delete(id)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "token":
		a.handleSelectToken(w, r, s)
	case len(parts) == 2 && parts[1] == "amount":
		a.handleEditAmount(w, r, s)
	case len(parts) == 2 && parts[1] == "swap":
		a.handleSwapSides(w, r, s)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type selectTokenRequest struct {
	Side  string `json:"side"`
	Token string `json:"token"`
}

func (a *api) handleSelectToken(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req selectTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	side, err := swap.ParseSide(req.Side)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Do(func(e *swap.Engine) { e.SelectToken(side, strings.ToUpper(strings.TrimSpace(req.Token))) })
	writeJSON(w, http.StatusOK, sessionResponse{ID: s.ID, State: s.State()})
}

type editAmountRequest struct {
	Side   string `json:"side"`
	Amount string `json:"amount"`
}

func (a *api) handleEditAmount(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req editAmountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	side, err := swap.ParseSide(req.Side)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	applied := false
	s.Do(func(e *swap.Engine) { applied = e.EditAmount(side, req.Amount) })
	writeJSON(w, http.StatusOK, amountResponse{ID: s.ID, Applied: applied, State: s.State()})
}

func (a *api) handleSwapSides(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.Do(func(e *swap.Engine) { e.SwapSides() })
	writeJSON(w, http.StatusOK, sessionResponse{ID: s.ID, State: s.State()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for browser usage; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses the response when the client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		next.ServeHTTP(gzipResponseWriter{ResponseWriter: w, Writer: gz}, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
	const maxBody = 1 << 20 // 1MB
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic protects handlers from panics.
func (a *api) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				a.logger.Error("handler panic", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
