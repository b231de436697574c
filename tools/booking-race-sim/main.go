package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/md-rashed-zaman/ritebook/libs/grpcx"
	"github.com/md-rashed-zaman/ritebook/libs/runtime"
)

type bookingRequest struct {
	ProviderID      string `json:"provider_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	CustomerName    string `json:"customer_name"`
}

func main() {
	var (
		baseURL  = flag.String("base-url", runtime.Getenv("BASE_URL", "http://localhost:8083"), "booking service base url")
		provider = flag.String("provider-id", runtime.Getenv("PROVIDER_ID", ""), "provider to contend on")
		date     = flag.String("date", runtime.Getenv("BOOKING_DATE", time.Now().AddDate(0, 0, 1).Format("2006-01-02")), "booking date (YYYY-MM-DD)")
		start    = flag.String("start", runtime.Getenv("START_TIME", "10:00"), "window start (HH:MM)")
		minutes  = flag.Int("minutes", 60, "window length in minutes")
		callers  = flag.Int("callers", 20, "concurrent callers")
		grpcAddr = flag.String("grpc-addr", runtime.Getenv("GRPC_ADDR", ""), "wait for gRPC health SERVING before racing (optional)")
		service  = flag.String("service", runtime.Getenv("SERVICE_NAME", "booking-service"), "health service name")
	)
	flag.Parse()

	if strings.TrimSpace(*provider) == "" {
		fatal("PROVIDER_ID is required")
	}
	if *callers < 1 {
		fatal("callers must be positive")
	}

	if *grpcAddr != "" {
		if err := waitHealthy(*grpcAddr, *service); err != nil {
			fatal(err.Error())
		}
	}

	url := strings.TrimRight(*baseURL, "/") + "/api/v1/bookings"
	client := &http.Client{Timeout: 15 * time.Second}

	var (
		mu     sync.Mutex
		counts = map[int]int{}
		errs   []string
		wg     sync.WaitGroup
		gate   = make(chan struct{})
	)
	for i := 0; i < *callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, _ := json.Marshal(bookingRequest{
				ProviderID:      *provider,
				Date:            *date,
				Time:            *start,
				DurationMinutes: *minutes,
				CustomerName:    fmt.Sprintf("sim-customer-%d", i),
			})
			<-gate
			resp, err := client.Post(url, "application/json", bytes.NewReader(body))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err.Error())
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			counts[resp.StatusCode]++
		}(i)
	}

	began := time.Now()
	close(gate)
	wg.Wait()

	fmt.Printf("callers=%d elapsed=%s\n", *callers, time.Since(began).Round(time.Millisecond))
	fmt.Printf("confirmed=%d conflict=%d other=%v transport_errors=%d\n",
		counts[http.StatusCreated], counts[http.StatusConflict], others(counts), len(errs))
	if counts[http.StatusCreated] > 1 {
		fatal("more than one caller confirmed the same window")
	}
}

func waitHealthy(addr, service string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 10 * time.Second})
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	return grpcx.WaitServing(ctx, conn, service, 500*time.Millisecond)
}

func others(counts map[int]int) map[int]int {
	out := map[int]int{}
	for code, n := range counts {
		if code != http.StatusCreated && code != http.StatusConflict {
			out[code] = n
		}
	}
	return out
}

func fatal(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
