// Command loadtest drives concurrent queries against a running searcher and
// reports throughput, latency percentiles, and the mix of result statuses.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s] [-queries queries.txt] [-year-ratio 0.2]
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/executor"
	"golang.org/x/sync/errgroup"
)

var defaultQueries = []string{
	"corporate governance",
	"microfinance",
	"financial reporting quality",
	"audit committee",
	"earnings management",
	"supply chain resilience",
	"machine learning credit risk",
	"sustainability disclosure",
	"behavioural finance",
	"public sector accounting",
	"blockchain",
	"small business lending",
	"",
}

type stats struct {
	total     atomic.Int64
	failures  atomic.Int64
	mu        sync.Mutex
	latencies []time.Duration
	statuses  map[string]int64
	codes     map[int]int64
}

func (s *stats) record(d time.Duration, code int, status string, err error) {
	s.total.Add(1)
	if err != nil {
		s.failures.Add(1)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, d)
	s.codes[code]++
	if status != "" {
		s.statuses[status]++
	}
	if code >= 300 {
		s.failures.Add(1)
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	queriesPath := flag.String("queries", "", "file with one query per line (default: built-in list)")
	yearRatio := flag.Float64("year-ratio", 0.2, "fraction of requests sorted by year")
	flag.Parse()

	queries := defaultQueries
	if *queriesPath != "" {
		var err error
		if queries, err = readQueries(*queriesPath); err != nil {
			fmt.Fprintf(os.Stderr, "reading queries: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("=== Scholar Search Load Test ===")
	fmt.Printf("Target:      %s\n", *baseURL)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	fmt.Printf("Queries:     %d unique\n", len(queries))
	fmt.Println()

	s := &stats{statuses: map[string]int64{}, codes: map[int]int64{}}
	if err := run(*baseURL, *concurrency, *duration, *yearRatio, queries, s); err != nil {
		fmt.Fprintf(os.Stderr, "load test aborted: %v\n", err)
		os.Exit(1)
	}
	report(s, *duration)
}

func run(baseURL string, concurrency int, duration time.Duration, yearRatio float64, queries []string, s *stats) error {
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	yearEvery := 0
	if yearRatio > 0 {
		yearEvery = int(math.Round(1 / yearRatio))
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				sort := executor.SortRelevance
				if yearEvery > 0 && i%yearEvery == 0 {
					sort = executor.SortYear
				}
				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=10&sort=%s",
					baseURL, url.QueryEscape(queries[i%len(queries)]), sort)
				if err := query(ctx, client, target, s); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func query(ctx context.Context, client *http.Client, target string, s *stats) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			s.record(elapsed, 0, "", err)
		}
		return nil
	}
	defer resp.Body.Close()

	var body executor.SearchResult
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && ctx.Err() == nil {
			s.record(elapsed, resp.StatusCode, "", err)
			return nil
		}
	}
	s.record(elapsed, resp.StatusCode, body.Status, nil)
	return nil
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			out = append(out, q)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s contains no queries", path)
	}
	return out, nil
}

func report(s *stats, duration time.Duration) {
	total := s.total.Load()
	failures := s.failures.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total requests: %d\n", total)
	fmt.Printf("Failures:       %d\n", failures)
	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: no requests completed. Is the searcher running?")
		os.Exit(1)
	}
	fmt.Printf("Failure rate:   %.2f%%\n", float64(failures)/float64(total)*100)
	fmt.Printf("Requests/sec:   %.2f\n", float64(total)/duration.Seconds())

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.latencies) > 0 {
		slices.Sort(s.latencies)
		var sum time.Duration
		for _, l := range s.latencies {
			sum += l
		}
		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min: %s\n", s.latencies[0])
		fmt.Printf("Avg: %s\n", sum/time.Duration(len(s.latencies)))
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Printf("P%.0f: %s\n", p, percentile(s.latencies, p))
		}
		fmt.Printf("Max: %s\n", s.latencies[len(s.latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Result status ===")
	for _, st := range sortedKeys(s.statuses) {
		fmt.Printf("  %-15s %d\n", st, s.statuses[st])
	}
	fmt.Println()
	fmt.Println("=== HTTP status ===")
	for _, code := range sortedKeys(s.codes) {
		fmt.Printf("  %d: %d\n", code, s.codes[code])
	}
}

func sortedKeys[K int | string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
