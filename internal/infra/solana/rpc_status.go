// internal/infra/solana/rpc_status.go
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// StatusClient is a small HTTP JSON-RPC client for the confirmation-polling
// methods the SDK client does not expose the way we need them
// (getSignatureStatuses with searchTransactionHistory).
type StatusClient struct {
	Endpoint string
	HTTP     *http.Client
}

// NewStatusClient creates the polling client against the given RPC endpoint.
func NewStatusClient(endpoint string) *StatusClient {
	return &StatusClient{
		Endpoint: strings.TrimSpace(endpoint),
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (c *StatusClient) call(ctx context.Context, method string, params any, out any) error {
	if c == nil || c.Endpoint == "" || c.HTTP == nil {
		return fmt.Errorf("solana rpc: client not configured")
	}

	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("solana rpc: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("solana rpc: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("solana rpc: http do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("solana rpc: http status=%d", resp.StatusCode)
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("solana rpc: decode response: %w", err)
	}
	if rr.Error != nil {
		return fmt.Errorf("solana rpc: error code=%d message=%s", rr.Error.Code, rr.Error.Message)
	}

	if out != nil {
		if err := json.Unmarshal(rr.Result, out); err != nil {
			return fmt.Errorf("solana rpc: unmarshal result: %w", err)
		}
	}
	return nil
}

// SignatureStatus is the decoded per-signature entry of getSignatureStatuses.
// Err carries the raw program error payload when the transaction was processed
// but failed on chain.
type SignatureStatus struct {
	Slot               uint64  `json:"slot"`
	Confirmations      *uint64 `json:"confirmations"`
	Err                any     `json:"err"`
	ConfirmationStatus string  `json:"confirmationStatus"`
}

type getSignatureStatusesResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value []*SignatureStatus `json:"value"`
}

// GetSignatureStatus calls `getSignatureStatuses` for a single signature with
// searchTransactionHistory enabled. Returns nil (no error) while the network
// does not know the signature yet.
func (c *StatusClient) GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	sig := strings.TrimSpace(signature)
	if sig == "" {
		return nil, fmt.Errorf("solana rpc: signature is empty")
	}

	params := []any{
		[]string{sig},
		map[string]any{
			"searchTransactionHistory": true,
		},
	}

	var out getSignatureStatusesResult
	if err := c.call(ctx, "getSignatureStatuses", params, &out); err != nil {
		return nil, err
	}

	if len(out.Value) == 0 {
		return nil, nil
	}
	return out.Value[0], nil
}

// ReachedCommitment reports whether the status satisfies the wanted
// commitment level. "confirmed" is satisfied by confirmed or finalized,
// "finalized" only by finalized.
func (s *SignatureStatus) ReachedCommitment(commitment string) bool {
	if s == nil {
		return false
	}
	switch strings.TrimSpace(commitment) {
	case "finalized":
		return s.ConfirmationStatus == "finalized"
	default:
		return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
	}
}
