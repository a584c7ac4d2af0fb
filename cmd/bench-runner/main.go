// bench-runner drives checkout load against a running canteen-service and
// reports latency percentiles and throughput.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type benchResult struct {
	Timestamp          string         `json:"timestamp"`
	BaseURL            string         `json:"base_url"`
	Orders             int            `json:"orders"`
	Concurrency        int            `json:"concurrency"`
	SuccessfulRequests int            `json:"successful_requests"`
	ErrorRequests      int            `json:"error_requests"`
	DurationSeconds    float64        `json:"duration_seconds"`
	AvgLatencyMs       float64        `json:"avg_latency_ms"`
	MinLatencyMs       float64        `json:"min_latency_ms"`
	MaxLatencyMs       float64        `json:"max_latency_ms"`
	P50LatencyMs       float64        `json:"p50_latency_ms"`
	P90LatencyMs       float64        `json:"p90_latency_ms"`
	P95LatencyMs       float64        `json:"p95_latency_ms"`
	P99LatencyMs       float64        `json:"p99_latency_ms"`
	ThroughputRPS      float64        `json:"throughput_rps"`
	StatusCounts       map[string]int `json:"status_counts"`
	FirstError         string         `json:"first_error"`
}

type metrics struct {
	mu           sync.Mutex
	success      int
	errors       int
	total        time.Duration
	minLatency   time.Duration
	maxLatency   time.Duration
	latenciesMs  []float64
	statusCounts map[string]int
	firstError   string
}

func newMetrics() *metrics {
	return &metrics{statusCounts: make(map[string]int)}
}

func (m *metrics) record(latency time.Duration, status int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.statusCounts["error"]++
		m.errors++
		if m.firstError == "" {
			m.firstError = err.Error()
		}
		return
	}
	m.statusCounts[strconv.Itoa(status)]++
	m.success++
	m.total += latency
	if m.minLatency == 0 || latency < m.minLatency {
		m.minLatency = latency
	}
	if latency > m.maxLatency {
		m.maxLatency = latency
	}
	m.latenciesMs = append(m.latenciesMs, float64(latency.Milliseconds()))
}

func main() {
	baseURL := flag.String("base-url", getenv("CANTEEN_BASE_URL", "http://localhost:8080"), "canteen-service base URL")
	total := flag.Int("total", 1000, "total number of orders to place")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	menuItem := flag.Int64("menu-item", 1, "menu item id to order")
	quantity := flag.Int("quantity", 1, "quantity per order")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	output := flag.String("output", "", "optional output path for JSON result")
	flag.Parse()

	if *total <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "total and concurrency must be > 0")
		os.Exit(1)
	}

	client := &http.Client{Timeout: *timeout}
	m := newMetrics()
	tasks := make(chan struct{})
	var wg sync.WaitGroup

	start := time.Now()
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for range tasks {
				latency, status, err := placeOrder(client, *baseURL, worker, *menuItem, *quantity)
				m.record(latency, status, err)
			}
		}(i)
	}
	for i := 0; i < *total; i++ {
		tasks <- struct{}{}
	}
	close(tasks)
	wg.Wait()
	duration := time.Since(start)

	var avg, min, max float64
	if m.success > 0 {
		avg = float64(m.total.Milliseconds()) / float64(m.success)
		min = float64(m.minLatency.Milliseconds())
		max = float64(m.maxLatency.Milliseconds())
	}
	p50, p90, p95, p99 := calcPercentiles(m.latenciesMs)

	result := benchResult{
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
		BaseURL:            *baseURL,
		Orders:             *total,
		Concurrency:        *concurrency,
		SuccessfulRequests: m.success,
		ErrorRequests:      m.errors,
		DurationSeconds:    duration.Seconds(),
		AvgLatencyMs:       avg,
		MinLatencyMs:       min,
		MaxLatencyMs:       max,
		P50LatencyMs:       p50,
		P90LatencyMs:       p90,
		P95LatencyMs:       p95,
		P99LatencyMs:       p99,
		ThroughputRPS:      float64(m.success) / duration.Seconds(),
		StatusCounts:       m.statusCounts,
		FirstError:         m.firstError,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		os.Exit(1)
	}
	if *output != "" {
		if err := writeJSON(*output, result); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
			os.Exit(1)
		}
	}
}

func placeOrder(client *http.Client, baseURL string, worker int, menuItem int64, quantity int) (time.Duration, int, error) {
	payload := map[string]any{
		"student_id": fmt.Sprintf("bench-%d", worker),
		"items":      []map[string]any{{"menu_item_id": menuItem, "quantity": quantity}},
	}
	data, _ := json.Marshal(payload)

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(baseURL, "/")+"/api/orders", bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return latency, 0, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return latency, resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return latency, resp.StatusCode, nil
}

func calcPercentiles(latencies []float64) (p50, p90, p95, p99 float64) {
	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sorted := append([]float64(nil), latencies...)
	sort.Float64s(sorted)
	pick := func(p float64) float64 {
		idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}
	return pick(50), pick(90), pick(95), pick(99)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
