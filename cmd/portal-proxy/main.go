package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frontline-tools/portal-client/pkg/client"
	"github.com/frontline-tools/portal-client/pkg/fetch"
	"github.com/frontline-tools/portal-client/pkg/session"
)

func main() {
	// Configuration from environment
	baseURL := getEnv("PORTAL_URL", "")
	userType := getEnv("PORTAL_USER_TYPE", "Employee")
	userID := getEnv("PORTAL_USER_ID", "")
	password := getEnv("PORTAL_PASSWORD", "")
	timezone := getEnv("PORTAL_TIMEZONE", "Eastern Standard Time")
	redisURL := getEnv("REDIS_URL", "")
	port := getEnv("PORT", "8080")

	if baseURL == "" || userID == "" || password == "" {
		log.Fatal("PORTAL_URL, PORTAL_USER_ID and PORTAL_PASSWORD are required")
	}

	cfg := client.DefaultConfig(client.Credentials{
		BaseURL:  baseURL,
		UserType: userType,
		UserID:   userID,
		Password: password,
		Timezone: timezone,
	})

	// Optional Redis-backed session sharing
	if redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		cfg.Store = session.NewRedisStore(redisClient)
		log.Printf("Session sharing enabled via Redis at %s", redisURL)
	}

	portalClient, err := client.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create portal client: %v", err)
	}

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/events", eventsHandler(portalClient))

	addr := ":" + port
	log.Printf("Starting portal proxy on %s", addr)
	log.Printf("Portal: %s (user %s)", baseURL, userID)

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// eventsHandler serves GET /events?start=2025-01-01&end=2025-03-01 by
// running a chunked parallel fetch against the portal.
func eventsHandler(portalClient *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
		if err != nil {
			http.Error(w, "invalid start date (want YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		end, err := time.Parse("2006-01-02", r.URL.Query().Get("end"))
		if err != nil {
			http.Error(w, "invalid end date (want YYYY-MM-DD)", http.StatusBadRequest)
			return
		}

		result, err := portalClient.BulkFetch(r.Context(), start, end, fetch.DefaultConfig(), nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"records":            result.Records,
			"total_windows":      result.TotalWindows,
			"completed_windows":  result.CompletedWindows,
			"failed_windows":     result.FailedWindows,
			"duplicates_removed": result.DuplicatesRemoved,
		})
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
