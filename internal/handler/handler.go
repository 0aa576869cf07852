package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/dispatcher"
)

const (
	// RequestIDHeader carries the correlation id on every response and on
	// every forwarded backend request.
	RequestIDHeader = "X-Request-ID"

	// ClientIDHeader carries the pre-validated caller identity set by the
	// auth layer in front of the gateway. It is the preferred rate-limit
	// key; the client IP is the fallback.
	ClientIDHeader = "X-Client-ID"
)

// errorBody is the failure response contract.
type errorBody struct {
	ErrorCode  string `json:"error_code"`
	RetryAfter int    `json:"retry_after,omitempty"`
	RequestID  string `json:"request_id"`
}

// GatewayHandler adapts inbound HTTP to the dispatch core and the dispatch
// outcome back to HTTP.
type GatewayHandler struct {
	logger     *slog.Logger
	dispatcher *dispatcher.Dispatcher
}

func New(logger *slog.Logger, d *dispatcher.Dispatcher) *GatewayHandler {
	return &GatewayHandler{
		logger:     logger,
		dispatcher: d,
	}
}

func (h *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := NewRequestID()
	clientIP := extractClientIP(r)
	clientKey := r.Header.Get(ClientIDHeader)
	if clientKey == "" {
		clientKey = clientIP
	}

	h.logger.Info("Gateway request received",
		slog.String("request_id", requestID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("client", HashKey(clientKey)),
		slog.String("user_agent", r.UserAgent()))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, requestID, &dispatcher.Outcome{Code: dispatcher.CodeServiceUnavailable})
		return
	}

	outcome := h.dispatcher.Dispatch(r.Context(), &dispatcher.Request{
		ID:        requestID,
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.RawQuery,
		Header:    r.Header,
		Body:      body,
		ClientKey: clientKey,
		ClientIP:  clientIP,
	})

	w.Header().Set(RequestIDHeader, requestID)
	setSecurityHeaders(w.Header())

	if outcome.Response != nil {
		h.writeResponse(w, outcome)
	} else {
		h.writeError(w, requestID, outcome)
	}

	h.logger.Info("Gateway request completed",
		slog.String("request_id", requestID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", outcome.Status()),
		slog.Duration("duration", time.Since(start)))
}

func (h *GatewayHandler) writeResponse(w http.ResponseWriter, outcome *dispatcher.Outcome) {
	for name, values := range outcome.Response.Header {
		if strings.EqualFold(name, "Connection") || strings.EqualFold(name, "Content-Length") {
			continue
		}
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}

	w.WriteHeader(outcome.Response.StatusCode)
	if _, err := w.Write(outcome.Response.Body); err != nil {
		h.logger.Warn("Failed to write response body", slog.String("error", err.Error()))
	}
}

func (h *GatewayHandler) writeError(w http.ResponseWriter, requestID string, outcome *dispatcher.Outcome) {
	retryAfter := retryAfterSeconds(outcome.RetryAfter)
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(outcome.Status())

	if err := json.NewEncoder(w).Encode(errorBody{
		ErrorCode:  string(outcome.Code),
		RetryAfter: retryAfter,
		RequestID:  requestID,
	}); err != nil {
		h.logger.Warn("Failed to write error body", slog.String("error", err.Error()))
	}
}

// NewRequestID generates a fresh correlation id for one dispatched request.
func NewRequestID() string {
	return "req_" + uuid.New().String()
}

// HashKey hashes an identity for logs so raw caller identifiers never land
// in log or metric sinks.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}

// retryAfterSeconds rounds a positive delay up to whole seconds.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func setSecurityHeaders(h http.Header) {
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
}
