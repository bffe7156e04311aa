package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/subosito/gotenv"
)

// Seeds synthetic supplier offers against a request in BIDDING through the
// public API. Useful for demos and for exercising the evaluation flow
// without real suppliers.

var vendors = []string{
	"northwind-supply",
	"acme-industrial",
	"globex-trading",
	"initech-systems",
	"umbrella-logistics",
	"stark-components",
}

var coverageRoles = []string{"engineer", "project manager", "technician", "consultant"}

var notes = []string{
	"Includes onsite installation",
	"Ex works, shipping billed separately",
	"Volume discount already applied",
	"",
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type seededOffer struct {
	ID       string  `json:"id"`
	Provider string  `json:"provider"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

type coverageEntry struct {
	Role  string `json:"role"`
	Count int    `json:"count"`
}

type offerPayload struct {
	Price        float64         `json:"price"`
	Currency     string          `json:"currency"`
	DeliveryDays int             `json:"delivery_days"`
	Coverage     []coverageEntry `json:"coverage"`
	Notes        string          `json:"notes,omitempty"`
}

func main() {
	_ = gotenv.Load()

	requestID := flag.String("request", "", "request id to bid on (required)")
	count := flag.Int("count", 3, "number of offers to submit")
	addr := flag.String("addr", defaultAddr(), "server base URL")
	currency := flag.String("currency", "EUR", "offer currency")
	base := flag.Float64("base", 10000, "base price, each offer jitters around it")
	flag.Parse()

	if *requestID == "" {
		fmt.Fprintln(os.Stderr, "Usage: seed-offers -request <id> [-count N] [-addr URL] [-currency EUR] [-base 10000]")
		os.Exit(2)
	}
	if *count < 1 || *count > len(vendors) {
		log.Fatalf("count must be between 1 and %d", len(vendors))
	}

	fmt.Println("=== Offer Seeder ===")
	fmt.Printf("Target: %s, request %s, %d offers\n\n", *addr, *requestID, *count)

	ctx := context.Background()
	client := &http.Client{Timeout: 30 * time.Second}

	var submitted int
	for i := 0; i < *count; i++ {
		vendor := vendors[i]
		payload := randomOffer(*base, *currency)

		offer, err := submitOffer(ctx, client, *addr, *requestID, vendor, payload)
		if err != nil {
			fmt.Printf("x %s: %v\n", vendor, err)
			continue
		}

		fmt.Printf("+ %s: offer %s at %.2f %s\n", vendor, offer.ID, offer.Price, offer.Currency)
		submitted++
	}

	fmt.Printf("\nSubmitted %d/%d offers\n", submitted, *count)
	if submitted == 0 {
		os.Exit(1)
	}
}

// defaultAddr honors PROCURA_PORT so the seeder targets the same port the
// server was started on.
func defaultAddr() string {
	port := os.Getenv("PROCURA_PORT")
	if port == "" {
		port = "8080"
	}
	return "http://localhost:" + port
}

func randomOffer(base float64, currency string) offerPayload {
	price := base * (0.85 + rand.Float64()*0.3)

	roles := append([]string(nil), coverageRoles...)
	rand.Shuffle(len(roles), func(i, j int) { roles[i], roles[j] = roles[j], roles[i] })

	coverage := make([]coverageEntry, 1+rand.Intn(3))
	for i := range coverage {
		coverage[i] = coverageEntry{Role: roles[i], Count: 1 + rand.Intn(4)}
	}

	return offerPayload{
		Price:        float64(int(price*100)) / 100,
		Currency:     currency,
		DeliveryDays: 7 + rand.Intn(21),
		Coverage:     coverage,
		Notes:        notes[rand.Intn(len(notes))],
	}
}

// submitOffer posts one offer as the given vendor. The vendor name doubles
// as the provider identity.
func submitOffer(ctx context.Context, client *http.Client, addr, requestID, vendor string, payload offerPayload) (*seededOffer, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/requests/%s/offers", addr, requestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", vendor)
	req.Header.Set("X-Role", "PROVIDER")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}
	if !envelope.Success {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, envelope.Error)
	}

	var offer seededOffer
	if err := json.Unmarshal(envelope.Data, &offer); err != nil {
		return nil, err
	}
	return &offer, nil
}
