package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// Small interactive helper: submits one URL to a running monitor on
// behalf of the principal in UPTIMEBOT_PRINCIPAL.
func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	principal := os.Getenv("UPTIMEBOT_PRINCIPAL")
	if principal == "" {
		fmt.Println("Set UPTIMEBOT_PRINCIPAL to your admin id.")
		return
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Enter a site URL to monitor (e.g., https://example.com): ")
	raw, _ := reader.ReadString('\n')
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		fmt.Println("Invalid URL.")
		return
	}

	body, _ := json.Marshal(map[string]string{"url": raw})
	req, err := http.NewRequest(http.MethodPost,
		api+"/api/principals/"+url.PathEscape(principal)+"/targets", bytes.NewReader(body))
	if err != nil {
		fmt.Println("Bad request:", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Principal-ID", principal)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("Error contacting API:", err)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		fmt.Println("Added! The monitor will start probing shortly.")
	case resp.StatusCode == http.StatusConflict:
		fmt.Println("Already tracked.")
	default:
		fmt.Println("API returned status:", resp.Status)
	}
}
