package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hivewatch/hivewatch/internal/cache"
	"github.com/hivewatch/hivewatch/internal/config"
	"github.com/hivewatch/hivewatch/internal/database"
	"github.com/hivewatch/hivewatch/internal/geo"
	"github.com/hivewatch/hivewatch/internal/insight"
	"github.com/hivewatch/hivewatch/internal/metrics"
	"github.com/hivewatch/hivewatch/internal/middleware"
	"github.com/hivewatch/hivewatch/internal/models"
	"github.com/hivewatch/hivewatch/internal/storage"
	"github.com/hivewatch/hivewatch/internal/webhook"
)

// BillingSignatureHeader carries the billing webhook signature.
const BillingSignatureHeader = "X-Billing-Signature"

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	DB         *database.PostgresDB
	Redis      *database.RedisDB
	ClickHouse *database.ClickHouseDB
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Server wraps HTTP handlers and the insight services.
type Server struct {
	ingest   *insight.IngestService
	insights *insight.Service
	refresh  *insight.RefreshService
	retain   *insight.RetentionService
	verifier *webhook.Verifier

	logger  *zap.Logger
	config  *config.Config
	metrics *metrics.Metrics
}

// NewServer constructs the server and its service graph. Stores fall
// back to in-memory implementations when no database is connected.
func NewServer(deps *Dependencies) *Server {
	var (
		trafficStore  storage.TrafficEventStore
		billingStore  storage.BillingEventStore
		snapshotStore storage.SnapshotStore
		productRepo   storage.ProductRepo
		settingsRepo  storage.SettingsRepo
	)

	if deps.DB != nil {
		eventStore := storage.NewPostgresEventStore(deps.DB.Pool)
		trafficStore = eventStore
		billingStore = eventStore
		snapshotStore = storage.NewPostgresSnapshotStore(deps.DB.Pool)
		productRepo = storage.NewPostgresProductRepo(deps.DB.Pool)
		settingsRepo = storage.NewPostgresSettingsRepo(deps.DB.Pool)
	} else {
		mem := storage.NewInMemoryStore()
		trafficStore = mem
		billingStore = mem
		snapshotStore = mem
		productRepo = mem
		settingsRepo = mem
	}

	// The append-heavy traffic stream can live in ClickHouse while the
	// relational stores stay in Postgres.
	if deps.ClickHouse != nil {
		trafficStore = storage.NewClickHouseTrafficStore(deps.ClickHouse.Conn, deps.Logger)
	}

	var resolver insight.CountryResolver
	if deps.Config.Geo.Enabled {
		r, err := geo.NewMaxMindResolver(deps.Config.Geo.DatabasePath)
		if err != nil {
			deps.Logger.Warn("failed to initialize geo resolver, country enrichment disabled", zap.Error(err))
		} else {
			resolver = r
		}
	}

	var signalCache *cache.SignalCache
	if deps.Redis != nil {
		signalCache = cache.NewSignalCache(deps.Redis.Client, deps.Config.Redis.SignalCacheTTL, deps.Logger)
	}

	var verifier *webhook.Verifier
	if deps.Config.Webhook.BillingSecret != "" {
		verifier = webhook.NewVerifier(deps.Config.Webhook.BillingSecret)
	} else {
		deps.Logger.Warn("billing webhook secret not configured, signature verification disabled")
	}

	trafficSvc := insight.NewTrafficService(trafficStore, deps.Config.Signals.WindowDays)
	revenueSvc := insight.NewRevenueService(billingStore)
	prober := insight.NewProber(deps.Config.Probe.Timeout, deps.Logger)
	recorder := insight.NewRecorder(snapshotStore, deps.Metrics)
	classifier := insight.NewClassifier(deps.Config.Signals.DeadAfterDays)

	return &Server{
		ingest:   insight.NewIngestService(trafficStore, billingStore, resolver, deps.Metrics, deps.Logger),
		insights: insight.NewService(productRepo, snapshotStore, settingsRepo, revenueSvc, classifier, signalCache, deps.Metrics, deps.Logger),
		refresh:  insight.NewRefreshService(productRepo, trafficSvc, revenueSvc, prober, recorder, signalCache, deps.Metrics, deps.Logger),
		retain:   insight.NewRetentionService(trafficStore, deps.Config.Retention.KeepDays, deps.Config.Retention.BatchSize, deps.Metrics, deps.Logger),
		verifier: verifier,
		logger:   deps.Logger,
		config:   deps.Config,
		metrics:  deps.Metrics,
	}
}

// RefreshService exposes the refresh workflow for the scheduler.
func (s *Server) RefreshService() *insight.RefreshService { return s.refresh }

// RetentionService exposes the retention sweep for the scheduler.
func (s *Server) RetentionService() *insight.RetentionService { return s.retain }

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	if s.config.Metrics.Enabled {
		mux.Handle(s.config.Metrics.Path, metrics.Handler())
	}

	mux.HandleFunc("/v1/ingest/traffic", s.handleIngestTraffic)
	mux.HandleFunc("/v1/webhooks/billing", s.handleBillingWebhook)
	mux.HandleFunc("/v1/products", s.handleProducts)
	mux.HandleFunc("/v1/products/", s.handleProductSubresource)
	mux.HandleFunc("/v1/revenue/", s.handleRevenue)
	mux.HandleFunc("/v1/refresh", s.handleRefresh)
	mux.HandleFunc("/v1/settings", s.handleSettings)

	var handler http.Handler = mux
	handler = middleware.NewAuthMiddleware(s.config.Auth, s.logger).Handler(handler)
	handler = middleware.NewRateLimitMiddleware(s.config.RateLimit, s.metrics, s.logger).Handler(handler)
	handler = middleware.NewLoggingMiddleware(s.logger).Handler(handler)
	handler = middleware.NewRecoveryMiddleware(s.logger).Handler(handler)
	return handler
}

// ---- Health check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ---- Traffic ingestion ----

type ingestResponse struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// handleIngestTraffic accepts a single traffic event or a batch. Invalid
// entries are rejected per item; the rest are stored.
func (s *Server) handleIngestTraffic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.errorResponse(w, "failed to read body", http.StatusBadRequest)
		return
	}

	var events []*models.TrafficEvent
	if err := json.Unmarshal(body, &events); err != nil {
		var single models.TrafficEvent
		if err := json.Unmarshal(body, &single); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		events = []*models.TrafficEvent{&single}
	}

	remoteIP := clientIP(r)
	resp := ingestResponse{}
	for _, ev := range events {
		if err := s.ingest.IngestTraffic(r.Context(), ev, remoteIP); err != nil {
			s.logger.Debug("traffic event rejected", zap.Error(err))
			resp.Rejected++
			continue
		}
		resp.Accepted++
	}

	status := http.StatusAccepted
	if resp.Accepted == 0 && resp.Rejected > 0 {
		status = http.StatusBadRequest
	}
	s.jsonResponse(w, resp, status)
}

// ---- Billing webhook ----

func (s *Server) handleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.errorResponse(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if s.verifier != nil {
		if err := s.verifier.Verify(body, r.Header.Get(BillingSignatureHeader)); err != nil {
			s.logger.Warn("billing webhook rejected", zap.Error(err))
			s.errorResponse(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var event models.BillingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	saved, err := s.ingest.IngestBilling(r.Context(), &event)
	if err != nil {
		if errors.Is(err, insight.ErrInvalidEvent) {
			s.errorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("billing ingest failed", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, map[string]bool{"received": true, "duplicate": !saved}, http.StatusOK)
}

// ---- Read API ----

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Header.Get(middleware.UserHeaderName)
	if userID == "" {
		s.errorResponse(w, "missing "+middleware.UserHeaderName, http.StatusBadRequest)
		return
	}

	list, err := s.insights.ListWithSignals(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to list products with signals", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, list, http.StatusOK)
}

// handleProductSubresource routes /v1/products/{id}/signal and
// /v1/products/{id}/history.
func (s *Server) handleProductSubresource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/products/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		s.errorResponse(w, "not found", http.StatusNotFound)
		return
	}
	productID := parts[0]

	switch parts[1] {
	case "signal":
		ps, err := s.insights.GetSignal(r.Context(), productID)
		if err != nil {
			s.logger.Error("failed to get signal", zap.String("product_id", productID), zap.Error(err))
			s.errorResponse(w, "internal error", http.StatusInternalServerError)
			return
		}
		if ps == nil {
			s.errorResponse(w, "product not found", http.StatusNotFound)
			return
		}
		s.jsonResponse(w, ps, http.StatusOK)

	case "history":
		days := 0
		if v := r.URL.Query().Get("days"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				days = n
			}
		}
		history, err := s.insights.History(r.Context(), productID, days)
		if err != nil {
			s.logger.Error("failed to get history", zap.String("product_id", productID), zap.Error(err))
			s.errorResponse(w, "internal error", http.StatusInternalServerError)
			return
		}
		if history == nil {
			history = []*models.MetricsSnapshot{}
		}
		s.jsonResponse(w, history, http.StatusOK)

	default:
		s.errorResponse(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleRevenue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	billingID := strings.TrimPrefix(r.URL.Path, "/v1/revenue/")
	if billingID == "" || strings.Contains(billingID, "/") {
		s.errorResponse(w, "not found", http.StatusNotFound)
		return
	}

	revenue, err := s.insights.Revenue(r.Context(), billingID)
	if err != nil {
		s.logger.Error("failed to get revenue", zap.String("billing_id", billingID), zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, revenue, http.StatusOK)
}

// ---- Settings ----

// handleSettings reads or upserts the calling user's signal thresholds.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(middleware.UserHeaderName)
	if userID == "" {
		s.errorResponse(w, "missing "+middleware.UserHeaderName, http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		thresholds, err := s.insights.Thresholds(r.Context(), userID)
		if err != nil {
			s.logger.Error("failed to get settings", zap.String("user_id", userID), zap.Error(err))
			s.errorResponse(w, "internal error", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, thresholds, http.StatusOK)

	case http.MethodPut:
		var thresholds models.SignalThresholds
		if err := json.NewDecoder(r.Body).Decode(&thresholds); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := thresholds.Validate(); err != nil {
			s.errorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.insights.SaveThresholds(r.Context(), userID, thresholds); err != nil {
			s.logger.Error("failed to save settings", zap.String("user_id", userID), zap.Error(err))
			s.errorResponse(w, "internal error", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, thresholds, http.StatusOK)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ---- Refresh ----

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report, err := s.refresh.RefreshAll(r.Context())
	if err != nil {
		s.logger.Error("refresh failed", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, report, http.StatusOK)
}

// ---- Helpers ----

func (s *Server) jsonResponse(w http.ResponseWriter, v interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) errorResponse(w http.ResponseWriter, msg string, status int) {
	s.jsonResponse(w, map[string]string{"error": msg}, status)
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
