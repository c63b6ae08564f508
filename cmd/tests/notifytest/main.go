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

	"github.com/CedrosPay/txupdate/internal/txupdate"
)

func main() {
	url := flag.String("url", "http://localhost:8080/transactions", "transaction update endpoint")
	paymentID := flag.String("payment-id", fmt.Sprintf("pay_test_%d", time.Now().Unix()), "razorpay_payment_id to send")
	orderID := flag.String("order-id", "order_test", "razorpay_order_id to send")
	status := flag.String("status", "success", "payment status (success or failed; anything else is rejected)")
	amount := flag.String("amount", "1000.10", "amount, sent as a JSON number")
	tenant := flag.String("tenant", "", "optional X-Tenant-Id header")
	flag.Parse()

	body, err := json.Marshal(map[string]any{
		txupdate.FieldPaymentID: *paymentID,
		txupdate.FieldOrderID:   *orderID,
		txupdate.FieldStatus:    *status,
		txupdate.FieldAmount:    json.Number(*amount),
		txupdate.FieldCurrency:  "INR",
		txupdate.FieldEmail:     "test@example.com",
	})
	if err != nil {
		log.Fatalf("encode notification: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *url, bytes.NewReader(body))
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set(txupdate.HeaderContentType, "application/json")
	if *tenant != "" {
		req.Header.Set(txupdate.TenantHeader, *tenant)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("send notification: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("%d %s\n", resp.StatusCode, respBody)
}
