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
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Plays one landing page visit against a running tracker-service.
func main() {
	baseURL := flag.String("url", "http://localhost:3000", "tracker HTTP base URL")
	grpcAddr := flag.String("grpc", "localhost:50051", "tracker gRPC health address")
	flag.Parse()

	conn, err := grpc.NewClient(*grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	healthResp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{
		Service: "tracker-service",
	})
	if err != nil {
		log.Fatalf("Health check failed: %v", err)
	}
	fmt.Printf("Health check: %s\n\n", healthResp.GetStatus())

	client := &http.Client{Timeout: 10 * time.Second}
	sessionID := uuid.NewString()
	now := func() string { return time.Now().UTC().Format(time.RFC3339Nano) }

	fmt.Printf("Session %s\n", sessionID)

	send(client, http.MethodPost, *baseURL+"/api/track/session", map[string]any{
		"session_id":      sessionID,
		"timestamp":       now(),
		"user_agent":      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148",
		"screen_width":    390,
		"screen_height":   844,
		"referrer":        "https://www.google.com/",
		"language":        "nl-BE",
		"platform":        "iPhone",
		"connection_type": "4g",
		"downlink":        10.0,
		"rtt":             50,
		"page_load_time":  1234,
		"timezone":        "Europe/Brussels",
	})

	send(client, http.MethodPost, *baseURL+"/api/track/session", map[string]any{
		"session_id":        sessionID,
		"timestamp":         now(),
		"latitude":          51.0543,
		"longitude":         3.7174,
		"location_accuracy": 20,
	})

	send(client, http.MethodPost, *baseURL+"/api/track/video", map[string]any{
		"session_id": sessionID,
		"event_type": "play",
		"timestamp":  now(),
		"video_time": 0,
	})
	send(client, http.MethodPost, *baseURL+"/api/track/video", map[string]any{
		"session_id":         sessionID,
		"event_type":         "ended",
		"timestamp":          now(),
		"video_time":         120.5,
		"total_watch_time":   118,
		"percentage_watched": 95.5,
	})

	send(client, http.MethodPost, *baseURL+"/api/track/click", map[string]any{
		"session_id":  sessionID,
		"button_type": "whatsapp",
		"timestamp":   now(),
	})

	send(client, http.MethodPost, *baseURL+"/api/track/interaction", map[string]any{
		"session_id": sessionID,
		"event_type": "resize",
		"details":    map[string]int{"width": 1280, "height": 720},
		"timestamp":  now(),
	})

	send(client, http.MethodPost, *baseURL+"/api/track/form", map[string]any{
		"session_id": sessionID,
		"name":       "Jan Peeters",
		"email":      "jan@example.com",
		"phone":      "+32 470 12 34 56",
		"timestamp":  now(),
	})

	send(client, http.MethodPut, *baseURL+"/api/track/session/"+sessionID, map[string]any{
		"time_on_page": 30,
		"scroll_depth": 45,
		"active_time":  25,
	})
	send(client, http.MethodPost, *baseURL+"/api/track/session/"+sessionID, map[string]any{
		"time_on_page": 95,
		"scroll_depth": 80,
	})

	fmt.Println("\nAll tests passed")
}

func send(client *http.Client, method, url string, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		log.Fatalf("Failed to encode body: %v", err)
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		log.Fatalf("%s %s: %s %s", method, url, resp.Status, out)
	}
	fmt.Printf("%-4s %-60s %d %s", method, url, resp.StatusCode, out)
}
