package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	baseURL       = "http://localhost:8080/api/v1"
	initialStock  = 20
	totalRequests = 50
	pollTimeout   = 10 * time.Second
)

type orderResult struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
}

func main() {
	client := &http.Client{Timeout: 5 * time.Second}
	productID := "loadgen-" + uuid.New().String()

	// Create the product under test
	product := map[string]interface{}{
		"id":             productID,
		"name":           "Load Test Widget",
		"base_price":     9.99,
		"discount_rule":  "percentage",
		"discount_param": 10,
		"quantity":       initialStock,
	}
	if err := postJSON(client, baseURL+"/products", product, nil); err != nil {
		log.Fatalf("failed to create product: %v", err)
	}

	// Spawn concurrent outbound orders
	var wg sync.WaitGroup
	orderIDs := make([]string, totalRequests)
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			req := map[string]interface{}{
				"direction": "outbound",
				"line_items": []map[string]interface{}{
					{"product_id": productID, "quantity": 1},
				},
			}
			var res orderResult
			if err := postJSON(client, baseURL+"/orders", req, &res); err != nil {
				log.Printf("order %d failed: %v", n, err)
				return
			}
			orderIDs[n] = res.OrderID
		}(i)
	}

	wg.Wait()

	// Poll until every order reaches a terminal status
	var committed, rejected atomic.Int32
	deadline := time.Now().Add(pollTimeout)
	for _, id := range orderIDs {
		if id == "" {
			continue
		}
		for {
			var res orderResult
			resp, err := client.Get(baseURL + "/orders/" + id)
			if err == nil {
				json.NewDecoder(resp.Body).Decode(&res)
				resp.Body.Close()
			}
			if res.Status == "committed" {
				committed.Add(1)
				break
			}
			if res.Status == "rejected" {
				rejected.Add(1)
				break
			}
			if time.Now().After(deadline) {
				log.Printf("order %s still %q at deadline", id, res.Status)
				break
			}
			time.Sleep(50 * time.Millisecond)
		}
	}
	elapsed := time.Since(start)

	fmt.Println("========== LOAD TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Committed:        %d\n", committed.Load())
	fmt.Printf("Rejected:         %d\n", rejected.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("=======================================")

	if committed.Load() == initialStock && rejected.Load() == totalRequests-initialStock {
		fmt.Printf("PASS: exactly %d orders committed, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: expected %d committed/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, committed.Load(), rejected.Load())
	}

	// Verify final stock through the API
	var p struct {
		Quantity int `json:"quantity"`
	}
	resp, err := client.Get(baseURL + "/products/" + productID)
	if err != nil {
		log.Fatalf("failed to read product: %v", err)
	}
	json.NewDecoder(resp.Body).Decode(&p)
	resp.Body.Close()

	fmt.Printf("Final Stock: %d\n", p.Quantity)
	if p.Quantity == 0 {
		fmt.Println("PASS: stock depleted to 0")
	} else {
		fmt.Printf("FAIL: expected stock 0, got %d\n", p.Quantity)
	}
}

func postJSON(client *http.Client, url string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
