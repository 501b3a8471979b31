package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

type overview struct {
	TotalSessions  int64   `json:"totalSessions"`
	AvgVideoTime   float64 `json:"avgVideoTime"`
	TotalForms     int64   `json:"totalForms"`
	AvgTimeOnPage  float64 `json:"avgTimeOnPage"`
	AvgActiveTime  float64 `json:"avgActiveTime"`
	AvgScrollDepth float64 `json:"avgScrollDepth"`
	ConversionRate float64 `json:"conversionRate"`
	ClicksByType   []struct {
		ButtonType string `json:"button_type"`
		Count      int64  `json:"count"`
	} `json:"clicksByType"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:3000", "tracker HTTP base URL")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	api := *baseURL + "/api/analytics"

	var o overview
	get(client, api+"/overview", &o)
	fmt.Printf("Sessions: %d, forms: %d, conversion: %.1f%%\n", o.TotalSessions, o.TotalForms, o.ConversionRate)
	fmt.Printf("Avg time on page: %.0fs, active: %.0fs, scroll: %.0f%%, video: %.0fs\n",
		o.AvgTimeOnPage, o.AvgActiveTime, o.AvgScrollDepth, o.AvgVideoTime)
	for _, c := range o.ClicksByType {
		fmt.Printf("   - %s: %d clicks\n", c.ButtonType, c.Count)
	}

	var buckets []struct {
		Bucket string `json:"duration_bucket"`
		Count  int64  `json:"count"`
	}
	get(client, api+"/time-distribution", &buckets)
	fmt.Println("\nTime on page:")
	for _, b := range buckets {
		fmt.Printf("   %-7s %s\n", b.Bucket, strings.Repeat("#", int(b.Count)))
	}

	var locations []struct {
		Latitude     float64 `json:"latitude"`
		Longitude    float64 `json:"longitude"`
		Municipality *string `json:"municipality"`
		Visits       int64   `json:"visits"`
		Leads        int64   `json:"leads"`
	}
	get(client, api+"/locations", &locations)
	fmt.Printf("\nTop %d locations:\n", min(5, len(locations)))
	for i, l := range locations {
		if i >= 5 {
			break
		}
		name := "?"
		if l.Municipality != nil {
			name = *l.Municipality
		}
		fmt.Printf("   %d. %s (%.2f, %.2f): %d visits, %d leads\n", i+1, name, l.Latitude, l.Longitude, l.Visits, l.Leads)
	}

	for _, path := range []string{"technical", "sessions?limit=5", "form-submissions?limit=5", "video-stats",
		"clicks?limit=5", "clicks-timeline", "regions", "interactions?limit=5"} {
		var raw json.RawMessage
		get(client, api+"/"+path, &raw)
		fmt.Printf("\n%s: %d bytes\n", path, len(raw))
	}

	resp, err := client.Get(api + "/export")
	if err != nil {
		log.Fatalf("Failed to export: %v", err)
	}
	defer resp.Body.Close()
	csv, _ := io.ReadAll(resp.Body)
	fmt.Printf("\nExport (%s): %d rows\n", resp.Header.Get("Content-Disposition"), strings.Count(string(csv), "\n")-1)

	fmt.Println("\nAll queries completed successfully!")
}

func get(client *http.Client, url string, v any) {
	resp, err := client.Get(url)
	if err != nil {
		log.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Fatalf("GET %s: %s %s", url, resp.Status, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		log.Fatalf("Failed to decode %s: %v", url, err)
	}
}
