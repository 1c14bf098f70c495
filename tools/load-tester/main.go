package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var sampleEvents = []map[string]any{
	{"eventName": "ConsoleLogin", "sourceIPAddress": "203.0.113.10"},
	{"eventName": "ListBuckets", "userIdentity": map[string]any{"type": "AssumedRole"}},
	{"eventName": "StopLogging", "eventSource": "cloudtrail.amazonaws.com"},
	{"eventName": "GetObject", "sourceIPAddress": "10.0.0.12"},
	{"eventName": "ChangePassword", "eventTime": "2024-05-01T02:14:00Z"},
}

func main() {
	baseURL := flag.String("url", "http://localhost:5000", "Base URL of the API server")
	token := flag.String("token", "", "Bearer token; when empty the tester logs in with -email and -password")
	email := flag.String("email", "loadtest@example.com", "Account used to obtain a token")
	password := flag.String("password", "loadtest-password", "Password for -email")
	strategy := flag.String("strategy", "rules", "Classification strategy sent with each request")
	batch := flag.Int("batch", 50, "Events per request")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 200, "Requests per second limit")
	flag.Parse()

	base := strings.TrimRight(*baseURL, "/")
	if *token == "" {
		t, err := login(base, *email, *password)
		if err != nil {
			log.Fatalf("Failed to obtain token: %v", err)
		}
		*token = t
	}

	target := base + "/api/classify"
	log.Printf("Starting load test on %s", target)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d, Batch: %d", *concurrency, *duration, *rps, *batch)

	var wg sync.WaitGroup
	var successCount, errorCount, eventCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: 5 * time.Second,
			}

			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				payload, err := buildPayload(workerID, *batch, *strategy)
				if err != nil {
					continue // Should not happen
				}

				req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
				if err != nil {
					continue
				}
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("Authorization", "Bearer "+*token)

				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						errorCount.Add(1)
					}
					continue
				}

				if resp.StatusCode == http.StatusOK {
					successCount.Add(1)
					eventCount.Add(int64(*batch))
				} else {
					errorCount.Add(1)
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
		}(i)
	}

	wg.Wait()

	totalRequests := successCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Successful (200 OK): %d", successCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Events classified: %d", eventCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
}

func buildPayload(workerID, batch int, strategy string) ([]byte, error) {
	events := make([]map[string]any, 0, batch)
	for i := 0; i < batch; i++ {
		ev := make(map[string]any, 4)
		for k, v := range sampleEvents[(workerID+i)%len(sampleEvents)] {
			ev[k] = v
		}
		ev["eventID"] = uuid.NewString()
		if _, ok := ev["eventTime"]; !ok {
			ev["eventTime"] = time.Now().UTC().Format(time.RFC3339)
		}
		events = append(events, ev)
	}
	return json.Marshal(map[string]any{"events": events, "strategy": strategy})
}

// login registers the account if needed and returns a fresh token.
func login(base, email, password string) (string, error) {
	creds, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}

	resp, err := http.Post(base+"/register", "application/json", bytes.NewReader(creds))
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		return "", fmt.Errorf("register: unexpected status %d", resp.StatusCode)
	}

	resp, err = http.Post(base+"/login", "application/json", bytes.NewReader(creds))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	return body.Token, nil
}
