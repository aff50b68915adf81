package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RaceResult gathers aggregated counters for the test run.
// Atomic counters are used to avoid lock contention on hot paths.
type RaceResult struct {
	TotalRequests int64
	ClaimedCount  int64
	ConflictCount int64
	ErrorCount    int64
	LatencySum    int64
}

const (
	fixedWorkers   = 50
	fixedRPSTarget = 700
	fixedDuration  = 10 * time.Second
	defaultTimeout = 30 * time.Second
)

// The perf client hammers the confirmation endpoint for a single voucher code.
// A correct server yields exactly one claim no matter how many workers race;
// everything else must come back as a conflict.
func main() {
	baseURL := envOr("PERF_BASE_URL", "http://localhost:8080")
	password := os.Getenv("PERF_SITE_PASSWORD")
	voucherCode := os.Getenv("PERF_VOUCHER_CODE")
	if password == "" || voucherCode == "" {
		fmt.Fprintln(os.Stderr, "PERF_SITE_PASSWORD and PERF_VOUCHER_CODE are required")
		os.Exit(1)
	}

	jar, _ := cookiejar.New(nil)
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        fixedWorkers * 4,
			MaxIdleConnsPerHost: fixedWorkers * 4,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: defaultTimeout,
		Jar:     jar,
		// Redirects are the success signal; do not follow them
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	if err := login(httpClient, baseURL, password); err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("==========================================")
	fmt.Println("voucher claim race test")
	fmt.Println("==========================================")
	fmt.Printf("target       : %s\n", baseURL)
	fmt.Printf("voucher code : %s\n", voucherCode)
	fmt.Printf("workers      : %d\n", fixedWorkers)
	fmt.Printf("rps          : %d\n", fixedRPSTarget)
	fmt.Printf("duration     : %v\n", fixedDuration)
	fmt.Println("==========================================")

	burst := fixedRPSTarget / fixedWorkers
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(fixedRPSTarget), burst)

	ctx, cancel := context.WithTimeout(context.Background(), fixedDuration)
	defer cancel()

	var result RaceResult
	var wg sync.WaitGroup

	for i := 0; i < fixedWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil { // context cancelled, exit
					return
				}
				doConfirm(httpClient, baseURL, voucherCode, &result)
			}
		}()
	}

	start := time.Now()
	<-ctx.Done()
	wg.Wait()
	totalDur := time.Since(start)

	var avgLatency time.Duration
	if result.TotalRequests > 0 {
		avgLatency = time.Duration(result.LatencySum / result.TotalRequests)
	}

	fmt.Println("==========================================")
	fmt.Println("results")
	fmt.Println("==========================================")
	fmt.Printf("elapsed        : %.2fs\n", totalDur.Seconds())
	fmt.Printf("total requests : %d\n", result.TotalRequests)
	fmt.Printf("claimed        : %d\n", result.ClaimedCount)
	fmt.Printf("conflicts      : %d\n", result.ConflictCount)
	fmt.Printf("errors         : %d\n", result.ErrorCount)
	fmt.Printf("avg latency    : %v\n", avgLatency)
	fmt.Println("==========================================")

	if result.ClaimedCount == 1 {
		fmt.Println("consistency check passed: exactly one claim")
	} else {
		fmt.Printf("consistency check FAILED: %d claims for one voucher\n", result.ClaimedCount)
		os.Exit(1)
	}
}

// login posts the shared password and keeps the session cookie in the jar
func login(client *http.Client, baseURL, password string) error {
	form := url.Values{"password": {password}}
	resp, err := client.Post(baseURL+"/login", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSeeOther {
		return fmt.Errorf("unexpected login status %d", resp.StatusCode)
	}
	return nil
}

// doConfirm performs a single confirmation submission and collects counters
func doConfirm(client *http.Client, baseURL, code string, result *RaceResult) {
	form := url.Values{
		"voucher_code":    {code},
		"confirm_voucher": {"1"},
	}

	start := time.Now()
	atomic.AddInt64(&result.TotalRequests, 1)

	resp, err := client.Post(baseURL+"/lookup", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		atomic.AddInt64(&result.ErrorCount, 1)
		return
	}
	resp.Body.Close()
	atomic.AddInt64(&result.LatencySum, time.Since(start).Nanoseconds())

	switch resp.StatusCode {
	case http.StatusSeeOther:
		atomic.AddInt64(&result.ClaimedCount, 1)
	case http.StatusConflict:
		atomic.AddInt64(&result.ConflictCount, 1)
	default:
		atomic.AddInt64(&result.ErrorCount, 1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
