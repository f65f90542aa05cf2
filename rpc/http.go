package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"credchain/native/credential"
	"credchain/native/vesting"
	"credchain/observability"
)

const (
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "CREDCHAIN_RPC_TOKEN"

	// Per-client budget for mutating calls.
	writeRatePerSecond = 1
	writeRateBurst     = 5
)

type handlerFunc func(s *Server, params json.RawMessage) (interface{}, *RPCError)

// Server exposes the credential registry over JSON-RPC 2.0 plus a websocket
// event feed, health and metrics endpoints.
type Server struct {
	ledger   *credential.Ledger
	registry *credential.Registry
	engine   *vesting.Engine
	feed     *EventFeed
	logger   *slog.Logger
	metrics  *observability.ModuleMetricsRegistry

	authToken string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewServer wires the RPC surface to the domain components. The event feed
// may be nil when no websocket streaming is wanted.
func NewServer(ledger *credential.Ledger, registry *credential.Registry, engine *vesting.Engine, feed *EventFeed, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ledger:    ledger,
		registry:  registry,
		engine:    engine,
		feed:      feed,
		logger:    logger,
		metrics:   observability.ModuleMetrics(),
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Router assembles the HTTP routes served by the daemon.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/", s.handle)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	if s.feed != nil {
		r.Get("/ws/events", s.handleEventsWS)
	}
	return r
}

// Start serves the router on the provided address and blocks.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

var methods = map[string]handlerFunc{
	"cred_mint":               (*Server).handleMint,
	"cred_burn":               (*Server).handleBurn,
	"cred_approve":            (*Server).handleApprove,
	"cred_transfer":           (*Server).handleTransfer,
	"cred_setTransferability": (*Server).handleSetTransferability,
	"cred_setAdmin":           (*Server).handleSetAdmin,
	"cred_setPaused":          (*Server).handleSetPaused,
	"cred_setVestingSchedule": (*Server).handleSetVestingSchedule,
	"cred_releaseVested":      (*Server).handleReleaseVested,
	"cred_isBurned":           (*Server).handleIsBurned,
	"cred_getTransferability": (*Server).handleGetTransferability,
	"cred_getVestingSchedule": (*Server).handleGetVestingSchedule,
	"cred_ownerOf":            (*Server).handleOwnerOf,
	"cred_tokensOf":           (*Server).handleTokensOf,
}

var mutatingMethods = map[string]bool{
	"cred_mint":               true,
	"cred_burn":               true,
	"cred_approve":            true,
	"cred_transfer":           true,
	"cred_setTransferability": true,
	"cred_setAdmin":           true,
	"cred_setPaused":          true,
	"cred_setVestingSchedule": true,
	"cred_releaseVested":      true,
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()
	logger := s.logger.With(slog.String("request_id", requestID))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, nil, &RPCError{Code: codeInvalidRequest, Message: "request too large or unreadable"})
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, &RPCError{Code: codeParseError, Message: "invalid JSON"})
		return
	}
	if req.JSONRPC != jsonRPCVersion || strings.TrimSpace(req.Method) == "" {
		writeError(w, req.ID, &RPCError{Code: codeInvalidRequest, Message: "invalid request envelope"})
		return
	}

	handler, ok := methods[req.Method]
	if !ok {
		s.metrics.ObserveError(req.Method, "method_not_found")
		writeError(w, req.ID, &RPCError{Code: codeMethodNotFound, Message: "unknown method " + req.Method})
		return
	}

	if mutatingMethods[req.Method] {
		if rpcErr := s.authorize(r); rpcErr != nil {
			s.metrics.ObserveError(req.Method, "unauthorized")
			writeError(w, req.ID, rpcErr)
			return
		}
		if !s.allow(clientIP(r)) {
			s.metrics.ObserveError(req.Method, "rate_limited")
			writeError(w, req.ID, &RPCError{Code: codeRateLimited, Message: "rate limit exceeded"})
			return
		}
	}

	result, rpcErr := handler(s, req.Params)
	elapsed := time.Since(start)
	if rpcErr != nil {
		s.metrics.ObserveRequest(req.Method, "error", elapsed)
		s.metrics.ObserveError(req.Method, rpcErrCodeLabel(rpcErr.Code))
		logger.Info("rpc request failed",
			slog.String("method", req.Method),
			slog.Int("code", rpcErr.Code),
			slog.String("error", rpcErr.Message),
			slog.Duration("elapsed", elapsed))
		writeError(w, req.ID, rpcErr)
		return
	}
	s.metrics.ObserveRequest(req.Method, "ok", elapsed)
	logger.Info("rpc request served",
		slog.String("method", req.Method),
		slog.Duration("elapsed", elapsed))
	writeResult(w, req.ID, result)
}

// authorize enforces the bearer token on mutating methods when one is
// configured.
func (s *Server) authorize(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

func (s *Server) allow(client string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[client]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(writeRatePerSecond), writeRateBurst)
		s.limiters[client] = limiter
	}
	return limiter.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func rpcErrCodeLabel(code int) string {
	switch code {
	case codeUnauthorized:
		return "unauthorized"
	case codeInvalidParams:
		return "invalid_params"
	case codeRateLimited:
		return "rate_limited"
	case codeMethodNotFound:
		return "method_not_found"
	default:
		return "server_error"
	}
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, id json.RawMessage, rpcErr *RPCError) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr})
}
