/**
 * @description
 * This package provides a client for the external Token Ledger API. It
 * encapsulates the logic for making authenticated HTTP requests to the
 * ledger's endpoints, handling request body construction, and parsing
 * responses. The batch endpoint applies all movements atomically; the ledger
 * either applies the whole batch or rejects it.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/crosspay/settlement-service/internal/domain"
	"github.com/crosspay/settlement-service/internal/ledger"
)

// Client is a client for the Token Ledger API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new Token Ledger API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// batchRequest is the payload for the atomic movement batch endpoint.
type batchRequest struct {
	Movements []movementPayload `json:"movements"`
}

type movementPayload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

// batchResponse is the expected response from the batch endpoint.
type batchResponse struct {
	Data struct {
		BatchID string `json:"batch_id"`
		Status  string `json:"status"`
	} `json:"data"`
}

// balanceResponse is the expected response from the balance endpoint.
type balanceResponse struct {
	Data struct {
		Account string `json:"account"`
		Balance uint64 `json:"balance"`
	} `json:"data"`
}

// ErrorResponse represents an error from the Token Ledger API.
type ErrorResponse struct {
	Errors []struct {
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("ledger api error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown ledger api error"
}

// insufficientFunds reports whether the API rejected the batch for lack of
// balance, so callers can match ledger.ErrInsufficientFunds with errors.Is.
func (e *ErrorResponse) insufficientFunds() bool {
	for _, apiErr := range e.Errors {
		if strings.EqualFold(apiErr.Code, "insufficient_funds") {
			return true
		}
	}
	return false
}

// Execute submits the movement batch to the ledger's atomic batch endpoint.
func (c *Client) Execute(ctx context.Context, movements []ledger.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	payload := batchRequest{Movements: make([]movementPayload, len(movements))}
	for i, m := range movements {
		payload.Movements[i] = movementPayload{
			From:      string(m.From),
			To:        string(m.To),
			Amount:    m.Amount,
			Reference: m.Reference,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal movement batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/v1/movements/batch", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create batch request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-ledger-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute batch request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read batch response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=ledger_client op=execute_batch status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
			return fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=ledger_client op=execute_batch status=%d title=%q detail=%q", resp.StatusCode, firstErrorTitle(errResp), firstErrorDetail(errResp))
		if errResp.insufficientFunds() {
			return fmt.Errorf("%w: %s", ledger.ErrInsufficientFunds, firstErrorDetail(errResp))
		}
		return &errResp
	}

	var successResp batchResponse
	if err := json.Unmarshal(bodyBytes, &successResp); err != nil {
		return fmt.Errorf("failed to decode success response: %w", err)
	}
	return nil
}

// Balance fetches the current balance for an account from the Token Ledger.
func (c *Client) Balance(ctx context.Context, account domain.Identity) (uint64, error) {
	url := c.BaseURL + "/api/v1/accounts/" + string(account) + "/balance"

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create balance request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-ledger-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute balance request: %w", err)
	}
	defer resp.Body.Close()
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=ledger_client op=get_balance account=%s status=%d msg=\"non-2xx response (unparsable error body)\"", account, resp.StatusCode)
			return 0, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=ledger_client op=get_balance account=%s status=%d title=%q detail=%q", account, resp.StatusCode, firstErrorTitle(errResp), firstErrorDetail(errResp))
		return 0, &errResp
	}

	var balanceResp balanceResponse
	if err := json.Unmarshal(bodyBytes, &balanceResp); err != nil {
		return 0, fmt.Errorf("failed to decode balance response: %w", err)
	}
	return balanceResp.Data.Balance, nil
}

func firstErrorTitle(resp ErrorResponse) string {
	if len(resp.Errors) == 0 {
		return ""
	}
	return resp.Errors[0].Title
}

func firstErrorDetail(resp ErrorResponse) string {
	if len(resp.Errors) == 0 {
		return ""
	}
	return resp.Errors[0].Detail
}
