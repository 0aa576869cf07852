package metrics

import (
	"sort"
	"sync"
	"time"
)

// maxSamples bounds the per-service latency window used for percentiles.
const maxSamples = 1000

type Metrics struct {
	mutex         sync.RWMutex
	requests      map[string]int64
	completions   map[string]int64
	responseTimes map[string][]time.Duration
	statusCodes   map[string]map[int]int64
	circuitStates map[string]string
	rejections    map[string]int64
	healthStatus  map[string]bool
	startTime     time.Time
}

type Snapshot struct {
	TotalRequests    int64                     `json:"total_requests"`
	Uptime           time.Duration             `json:"uptime"`
	Services         map[string]ServiceMetrics `json:"services"`
	RateLimitDenials map[string]int64          `json:"rate_limit_denials"`
}

type ServiceMetrics struct {
	Requests     int64         `json:"requests"`
	Completed    int64         `json:"completed"`
	CircuitState string        `json:"circuit_state"`
	Healthy      bool          `json:"healthy"`
	AvgResponse  time.Duration `json:"avg_response"`
	P50Response  time.Duration `json:"p50_response"`
	P95Response  time.Duration `json:"p95_response"`
	P99Response  time.Duration `json:"p99_response"`
	StatusCodes  map[int]int64 `json:"status_codes"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:      make(map[string]int64),
		completions:   make(map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		statusCodes:   make(map[string]map[int]int64),
		circuitStates: make(map[string]string),
		rejections:    make(map[string]int64),
		healthStatus:  make(map[string]bool),
		startTime:     time.Now(),
	}
}

func (m *Metrics) IncrementRequests(service string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.requests[service]++
}

func (m *Metrics) RecordCompletion(service string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.completions[service]++

	m.responseTimes[service] = append(m.responseTimes[service], duration)
	if len(m.responseTimes[service]) > maxSamples {
		m.responseTimes[service] = m.responseTimes[service][1:]
	}

	if m.statusCodes[service] == nil {
		m.statusCodes[service] = make(map[int]int64)
	}
	m.statusCodes[service][statusCode]++
}

func (m *Metrics) RecordCircuitState(service, state string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.circuitStates[service] = state
}

func (m *Metrics) IncrementRejections(route string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rejections[route]++
}

func (m *Metrics) UpdateHealthStatus(service string, healthy bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.healthStatus[service] = healthy
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:           time.Since(m.startTime),
		Services:         make(map[string]ServiceMetrics),
		RateLimitDenials: make(map[string]int64, len(m.rejections)),
	}

	for route, count := range m.rejections {
		snap.RateLimitDenials[route] = count
	}

	// Collect every service any map has seen
	allServices := make(map[string]bool)
	for service := range m.requests {
		allServices[service] = true
	}
	for service := range m.completions {
		allServices[service] = true
	}
	for service := range m.circuitStates {
		allServices[service] = true
	}
	for service := range m.healthStatus {
		allServices[service] = true
	}

	for service := range allServices {
		snap.TotalRequests += m.requests[service]

		sm := ServiceMetrics{
			Requests:     m.requests[service],
			Completed:    m.completions[service],
			CircuitState: m.circuitStates[service],
			Healthy:      m.healthStatus[service],
			StatusCodes:  m.statusCodes[service],
		}

		durations := m.responseTimes[service]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			sm.AvgResponse = average(sorted)
			sm.P50Response = percentile(sorted, 0.50)
			sm.P95Response = percentile(sorted, 0.95)
			sm.P99Response = percentile(sorted, 0.99)
		}

		snap.Services[service] = sm
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
