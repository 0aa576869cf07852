package metrics_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		collector = metrics.NewCollector(100, discardLogger())
		ctx, cancel = context.WithCancel(context.Background())
		collector.Start(ctx)
	})

	AfterEach(func() {
		cancel()
	})

	Describe("Emit", func() {
		It("should aggregate request and completion events per service", func() {
			collector.Emit(metrics.Event{Type: metrics.EventRequestReceived, Service: "data-processor"})
			collector.Emit(metrics.Event{
				Type:       metrics.EventRequestCompleted,
				Service:    "data-processor",
				StatusCode: 202,
				Duration:   120 * time.Millisecond,
			})

			Eventually(func() int64 {
				return collector.Snapshot().Services["data-processor"].Requests
			}).Should(Equal(int64(1)))

			snap := collector.Snapshot()
			Expect(snap.TotalRequests).To(Equal(int64(1)))
			Expect(snap.Services["data-processor"].Completed).To(Equal(int64(1)))
			Expect(snap.Services["data-processor"].StatusCodes[202]).To(Equal(int64(1)))
		})

		It("should track circuit state transitions", func() {
			collector.Emit(metrics.Event{
				Type:      metrics.EventCircuitStateChanged,
				Service:   "analytics-engine",
				FromState: "CLOSED",
				ToState:   "OPEN",
			})

			Eventually(func() string {
				return collector.Snapshot().Services["analytics-engine"].CircuitState
			}).Should(Equal("OPEN"))
		})

		It("should count rate limit rejections per route", func() {
			collector.Emit(metrics.Event{Type: metrics.EventRateLimitRejected, Route: "/data/process"})
			collector.Emit(metrics.Event{Type: metrics.EventRateLimitRejected, Route: "/data/process"})

			Eventually(func() int64 {
				return collector.Snapshot().RateLimitDenials["/data/process"]
			}).Should(Equal(int64(2)))
		})

		It("should track upstream health", func() {
			collector.Emit(metrics.Event{Type: metrics.EventUpstreamHealthChanged, Service: "data-processor", Healthy: true})

			Eventually(func() bool {
				return collector.Snapshot().Services["data-processor"].Healthy
			}).Should(BeTrue())
		})

		It("should never block when the buffer is full", func() {
			full := metrics.NewCollector(1, discardLogger())
			// No Start: nothing drains the channel.
			done := make(chan struct{})
			go func() {
				for i := 0; i < 100; i++ {
					full.Emit(metrics.Event{Type: metrics.EventRequestReceived, Service: "data-processor"})
				}
				close(done)
			}()

			Eventually(done).Should(BeClosed())
		})
	})

	Describe("Handler", func() {
		It("should serve the snapshot as JSON", func() {
			collector.Emit(metrics.Event{Type: metrics.EventRequestReceived, Service: "data-processor"})
			Eventually(func() int64 { return collector.Snapshot().TotalRequests }).Should(Equal(int64(1)))

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			collector.Handler()(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

			var snap metrics.Snapshot
			Expect(json.Unmarshal(rec.Body.Bytes(), &snap)).To(Succeed())
			Expect(snap.TotalRequests).To(Equal(int64(1)))
		})
	})
})

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	BeforeEach(func() {
		m = metrics.NewMetrics()
	})

	Describe("Snapshot", func() {
		It("should compute latency percentiles from completions", func() {
			for i := 1; i <= 100; i++ {
				m.RecordCompletion("analytics-engine", time.Duration(i)*time.Millisecond, 200)
			}

			snap := m.Snapshot()
			sm := snap.Services["analytics-engine"]
			Expect(sm.P50Response).To(BeNumerically("~", 50*time.Millisecond, 2*time.Millisecond))
			Expect(sm.P95Response).To(BeNumerically("~", 95*time.Millisecond, 2*time.Millisecond))
			Expect(sm.P99Response).To(BeNumerically("~", 99*time.Millisecond, 2*time.Millisecond))
			Expect(sm.AvgResponse).To(BeNumerically("~", 50*time.Millisecond, 2*time.Millisecond))
		})

		It("should report uptime", func() {
			Expect(m.Snapshot().Uptime).To(BeNumerically(">=", 0))
		})
	})
})
