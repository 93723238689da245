// Loadtest floods POST /metric with synthetic samples from a handful of
// networks and reports throughput and latency percentiles.
//
//	go run tools/loadtest.go -url http://localhost:8080/metric -threads 4 -connections 100 -duration 30s
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"greenchain-insights/models"
)

type stats struct {
	requests  int64
	succeeded int64
	failed    int64
	totalNs   int64
	minNs     int64
	maxNs     int64

	mu        sync.Mutex
	latencies []int64
}

func (s *stats) record(latency time.Duration, ok bool) {
	atomic.AddInt64(&s.requests, 1)
	if !ok {
		atomic.AddInt64(&s.failed, 1)
		return
	}
	atomic.AddInt64(&s.succeeded, 1)

	ns := latency.Nanoseconds()
	atomic.AddInt64(&s.totalNs, ns)
	for {
		old := atomic.LoadInt64(&s.minNs)
		if ns >= old || atomic.CompareAndSwapInt64(&s.minNs, old, ns) {
			break
		}
	}
	for {
		old := atomic.LoadInt64(&s.maxNs)
		if ns <= old || atomic.CompareAndSwapInt64(&s.maxNs, old, ns) {
			break
		}
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, ns)
	s.mu.Unlock()
}

var networks = []struct {
	id        string
	consensus models.ConsensusMechanism
	kwhPerTx  float64
}{
	{"ethereum", models.ProofOfStake, 0.03},
	{"bitcoin", models.ProofOfWork, 700},
	{"solana", models.ProofOfStake, 0.0005},
	{"cardano", models.ProofOfStake, 0.5},
}

func main() {
	url := flag.String("url", "http://localhost:8080/metric", "ingestion endpoint")
	threads := flag.Int("threads", 4, "worker goroutine groups")
	connections := flag.Int("connections", 100, "total concurrent senders")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	fmt.Printf("Load Test Configuration:\n")
	fmt.Printf("  URL: %s\n", *url)
	fmt.Printf("  Threads: %d\n", *threads)
	fmt.Printf("  Connections: %d\n", *connections)
	fmt.Printf("  Duration: %v\n\n", *duration)

	s := &stats{minNs: 1 << 62, latencies: make([]int64, 0, 10000)}
	start := time.Now()
	end := start.Add(*duration)

	perThread := *connections / *threads
	if perThread == 0 {
		perThread = 1
	}

	var wg sync.WaitGroup
	for t := 0; t < *threads; t++ {
		client := &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		}
		for c := 0; c < perThread; c++ {
			wg.Add(1)
			seed := int64(t*perThread + c)
			go func() {
				defer wg.Done()
				rng := rand.New(rand.NewSource(seed))
				for time.Now().Before(end) {
					send(client, *url, randomSample(rng), s)
				}
			}()
		}
	}

	wg.Wait()
	printResults(s, time.Since(start))
}

func randomSample(rng *rand.Rand) models.MetricSample {
	n := networks[rng.Intn(len(networks))]
	tx := 500 + rng.Float64()*1500
	energy := tx * n.kwhPerTx * (0.8 + rng.Float64()*0.4)
	return models.MetricSample{
		SourceID:           n.id,
		Timestamp:          time.Now().UTC(),
		TransactionCount:   tx,
		BlockTime:          2 + rng.Float64()*10,
		EnergyUsageKWh:     energy,
		EmissionsKgCO2:     energy * 0.4,
		ActiveValidators:   float64(100 + rng.Intn(900)),
		NetworkUsage:       rng.Float64(),
		ConsensusMechanism: n.consensus,
	}
}

func send(client *http.Client, url string, sample models.MetricSample, s *stats) {
	body, _ := json.Marshal(sample)
	req, _ := http.NewRequest("POST", url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)

	if resp != nil {
		resp.Body.Close()
	}
	s.record(latency, err == nil && resp.StatusCode == http.StatusOK)
}

func percentile(sorted []int64, p int) time.Duration {
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		return 0
	}
	return time.Duration(sorted[idx])
}

func printResults(s *stats, duration time.Duration) {
	total := atomic.LoadInt64(&s.requests)
	success := atomic.LoadInt64(&s.succeeded)

	avg := time.Duration(0)
	if success > 0 {
		avg = time.Duration(atomic.LoadInt64(&s.totalNs) / success)
	}

	s.mu.Lock()
	sorted := append([]int64(nil), s.latencies...)
	s.mu.Unlock()
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	fmt.Println("\n==========================================")
	fmt.Println("Load Test Results")
	fmt.Println("==========================================")
	fmt.Printf("Duration:        %v\n", duration)
	fmt.Printf("Total Requests: %d\n", total)
	fmt.Printf("Successful:     %d\n", success)
	fmt.Printf("Failed:         %d\n", atomic.LoadInt64(&s.failed))
	if total > 0 {
		fmt.Printf("Success Rate:   %.2f%%\n", float64(success)/float64(total)*100)
	}
	fmt.Printf("Requests/sec:   %.2f\n", float64(total)/duration.Seconds())
	fmt.Println("\nLatency Statistics:")
	if success > 0 {
		fmt.Printf("  Min:          %v\n", time.Duration(atomic.LoadInt64(&s.minNs)))
	}
	fmt.Printf("  Max:          %v\n", time.Duration(atomic.LoadInt64(&s.maxNs)))
	fmt.Printf("  Average:      %v\n", avg)
	for _, p := range []int{50, 95, 99} {
		if v := percentile(sorted, p); v > 0 {
			fmt.Printf("  p%d:          %v\n", p, v)
		}
	}
	fmt.Println("==========================================")
}
