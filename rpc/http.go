package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"saleledger/core"
	"saleledger/native/directsell"
	"saleledger/native/token"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "SALE_RPC_TOKEN"
)

// Default throttle for mutating methods, per client.
const (
	defaultRateLimitPerMinute = 600
	defaultRateLimitBurst     = 20
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeForbidden      = -32011
	codeNotFound       = -32012
	codeConflict       = -32013
	codeValueError     = -32014
	codeRateLimited    = -32015
)

// Server exposes the settlement engine over JSON-RPC 2.0, with prometheus
// metrics and a health probe on the same listener.
type Server struct {
	node      *core.Node
	logger    *slog.Logger
	authToken string
	limits    *rateLimiter
}

// NewServer creates an RPC server over the node. A bearer token for
// mutating methods is read from SALE_RPC_TOKEN; when unset, mutating
// methods are open (local development). Mutating methods are throttled
// per client with a default budget; SetRateLimit adjusts it.
func NewServer(node *core.Node, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		node:      node,
		logger:    logger,
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
		limits:    newRateLimiter(defaultRateLimitPerMinute, defaultRateLimitBurst),
	}
}

// SetRateLimit replaces the per-client throttle on mutating methods.
func (s *Server) SetRateLimit(perMinute float64, burst int) {
	s.limits = newRateLimiter(perMinute, burst)
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start serves the router on addr, blocking until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string) {
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) requireAuth(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) == 1
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC request")
		return
	}
	if req.JSONRPC != jsonRPCVersion || strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid JSON-RPC request")
		return
	}

	switch req.Method {
	case "directsell_sell":
		s.withAuth(w, r, &req, s.handleSell)
	case "directsell_lowerPrice":
		s.withAuth(w, r, &req, s.handleLowerPrice)
	case "directsell_buy":
		s.withAuth(w, r, &req, s.handleBuy)
	case "directsell_cancel":
		s.withAuth(w, r, &req, s.handleCancel)
	case "directsell_cancelWithAuthority":
		s.withAuth(w, r, &req, s.handleCancelWithAuthority)
	case "directsell_getListing":
		s.handleGetListing(w, &req)
	case "directsell_balance":
		s.handleBalance(w, &req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found")
	}
}

func (s *Server) withAuth(w http.ResponseWriter, r *http.Request, req *RPCRequest, handler func(http.ResponseWriter, *RPCRequest)) {
	if !s.limits.allow(clientID(r)) {
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded")
		return
	}
	if !s.requireAuth(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "missing or invalid bearer token")
		return
	}
	handler(w, req)
}

// mapEngineError translates engine sentinels into JSON-RPC error codes so
// clients can branch without string matching.
func mapEngineError(err error) (int, int) {
	switch {
	case errors.Is(err, directsell.ErrUnauthorized),
		errors.Is(err, directsell.ErrAuthorityMismatch),
		errors.Is(err, directsell.ErrInvalidBump),
		errors.Is(err, token.ErrUnauthorized):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, directsell.ErrRecordNotFound),
		errors.Is(err, directsell.ErrMintNotFound),
		errors.Is(err, token.ErrMintNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, directsell.ErrRecordAlreadyExists),
		errors.Is(err, directsell.ErrPriceNotLower):
		return http.StatusConflict, codeConflict
	case errors.Is(err, directsell.ErrInvalidAmount),
		errors.Is(err, directsell.ErrInsufficientBalance),
		errors.Is(err, directsell.ErrInsufficientFunds),
		errors.Is(err, directsell.ErrArithmeticOverflow),
		errors.Is(err, directsell.ErrPriceMismatch),
		errors.Is(err, directsell.ErrMetadataMismatch),
		errors.Is(err, directsell.ErrCreatorListMismatch):
		return http.StatusBadRequest, codeValueError
	default:
		return http.StatusInternalServerError, codeServerError
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	status, code := mapEngineError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("rpc transition failed", "err", err)
	}
	writeError(w, status, id, code, err.Error())
}
