// Backend is a stub healthcare service used for manual gateway runs.
// It answers the data-processor and analytics-engine routes plus /health,
// and can simulate an outage to exercise retries and the circuit breaker.
//
// Usage:
//
//	go run backend.go -port 8081
//	go run backend.go -port 8081 -fail          # refuse all work with 0-byte resets
//	go run backend.go -port 8081 -error-rate 30 # fail ~30% of requests with 500s
//
// The server logs all requests and returns JSON responses with job IDs.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"time"
)

func newJobID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return "job_" + hex.EncodeToString(b)
}

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	fail := flag.Bool("fail", false, "drop every connection to simulate a dead backend")
	errorRate := flag.Int("error-rate", 0, "percentage of requests answered with 500")
	flag.Parse()

	shouldError := func() bool {
		if *errorRate <= 0 {
			return false
		}
		n, err := rand.Int(rand.Reader, big.NewInt(100))
		return err == nil && n.Int64() < int64(*errorRate)
	}

	writeJSON := func(w http.ResponseWriter, status int, payload any) {
		b, _ := json.Marshal(payload)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(b)
	}

	handle := func(status int, build func(r *http.Request) any) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			log.Printf("request: method=%s path=%s from=%s request_id=%s",
				r.Method, r.URL.Path, r.RemoteAddr, r.Header.Get("X-Request-ID"))
			if shouldError() {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "simulated failure"})
				return
			}
			writeJSON(w, status, build(r))
		}
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/data/process", handle(http.StatusAccepted, func(r *http.Request) any {
		return map[string]any{
			"job_id":    newJobID(),
			"status":    "queued",
			"submitted": time.Now().UTC().Format(time.RFC3339),
		}
	}))

	mux.HandleFunc("/data/status/", handle(http.StatusOK, func(r *http.Request) any {
		return map[string]any{"job_id": r.URL.Path[len("/data/status/"):], "status": "completed"}
	}))

	mux.HandleFunc("/analytics/query", handle(http.StatusOK, func(r *http.Request) any {
		return map[string]any{"query_id": newJobID(), "rows": 42}
	}))

	mux.HandleFunc("/analytics/types", handle(http.StatusOK, func(r *http.Request) any {
		return map[string]any{"types": []string{"utilization", "outcomes", "cost"}}
	}))

	// health endpoint used by the gateway's background prober
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf(":%d", *port)

	if *fail {
		// Listen but reset every connection so the gateway sees
		// transport failures, not HTTP errors.
		log.Printf("starting FAILING backend on %s", addr)
		srv := &http.Server{Addr: addr, Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hj, ok := w.(http.Hijacker)
			if !ok {
				return
			}
			conn, _, err := hj.Hijack()
			if err == nil {
				conn.Close()
			}
		})}
		log.Fatal(srv.ListenAndServe())
	}

	log.Printf("starting backend on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
