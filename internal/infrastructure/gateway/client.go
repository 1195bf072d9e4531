// Package gateway talks to the external payment gateway over HTTP.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/config"
)

type orderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// HTTPGatewayClient creates gateway orders against a Razorpay-style API:
// basic auth with a key pair, amounts in minor units, a merchant receipt
// string. The signing secret never leaves the server.
type HTTPGatewayClient struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

func NewGatewayClient(cfg config.GatewayConfig) application.GatewayClient {
	return &HTTPGatewayClient{
		baseURL:   cfg.BaseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

// CreateOrder requests a gateway order sized to the given amount. The call
// is bounded by the client timeout; on failure the caller must treat the
// session as failed-to-confirm, not failed-to-occur.
func (c *HTTPGatewayClient) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*application.GatewaySession, error) {
	url := fmt.Sprintf("%s/v1/orders", c.baseURL)

	reqBody := orderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling json: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &GatewayError{
			Code:    "connection_failed",
			Message: err.Error(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		var gwErr GatewayErrorResponse
		if err := json.Unmarshal(body, &gwErr); err != nil {
			return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, &GatewayError{
			Code:       gwErr.Err,
			Message:    gwErr.Message,
			StatusCode: resp.StatusCode,
		}
	}

	var order orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &application.GatewaySession{
		GatewayOrderID: order.ID,
		AmountMinor:    order.Amount,
		Currency:       order.Currency,
	}, nil
}
