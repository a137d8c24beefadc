package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type webhookPayload struct {
	ProviderTitleID string `json:"provider_title_id,omitempty"`
	OrderNSU        string `json:"order_nsu,omitempty"`
	Status          string `json:"status"`
}

func main() {
	url := flag.String("url", "http://localhost:8080/functions/v1/boleto-webhook", "Webhook URL")
	secret := flag.String("secret", os.Getenv("BOLETO_WEBHOOK_SECRET"), "Webhook secret (x-webhook-secret)")
	titleID := flag.String("title", "", "Provider title id, e.g. pay_123")
	orderNSU := flag.String("order", "", "Order NSU")
	status := flag.String("status", "RECEIVED", "Provider status (RECEIVED, CONFIRMED, OVERDUE, DELETED, ...)")
	dryRun := flag.Bool("dry-run", false, "Only print the body, don't send")

	flag.Parse()

	if *secret == "" {
		fmt.Fprintf(os.Stderr, "Error: secret not provided and BOLETO_WEBHOOK_SECRET not set\n")
		os.Exit(1)
	}
	if *titleID == "" && *orderNSU == "" {
		fmt.Fprintf(os.Stderr, "Error: one of -title or -order is required\n")
		os.Exit(1)
	}

	body, err := json.Marshal(webhookPayload{ProviderTitleID: *titleID, OrderNSU: *orderNSU, Status: *status})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling payload: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Body: %s\n", string(body))

	if *dryRun {
		fmt.Println("\n[DRY RUN] Not sending request")
		return
	}

	fmt.Printf("\nSending to %s...\n", *url)
	req, err := http.NewRequest(http.MethodPost, *url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-webhook-secret", *secret)

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %d\n", resp.StatusCode)
	fmt.Printf("Response: %s\n", string(respBody))

	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
