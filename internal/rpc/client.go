// Package rpc implements a minimal JSON-RPC 2.0 client for EVM nodes over
// HTTP, covering the handful of methods fee profiling needs.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// requestTimeout bounds every HTTP round trip to the node.
const requestTimeout = 25 * time.Second

// Client talks JSON-RPC 2.0 to a single EVM node endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	maxRetries int
}

// NewClient builds a client without touching the network. maxRetries is the
// number of extra attempts per call; 0 means every call is a single shot.
func NewClient(endpoint string, maxRetries int) *Client {
	return &Client{
		endpoint:   endpoint,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Endpoint returns the URL this client was built for.
func (c *Client) Endpoint() string { return c.endpoint }

// ConnectError reports an endpoint that failed the initial liveness probe.
type ConnectError struct {
	Endpoint string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("cannot reach %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Connect builds a client and verifies the endpoint answers JSON-RPC
// (web3_clientVersion) before any real work starts.
func Connect(ctx context.Context, endpoint string, maxRetries int) (*Client, error) {
	c := NewClient(endpoint, maxRetries)
	if _, err := c.ClientVersion(ctx); err != nil {
		return nil, &ConnectError{Endpoint: endpoint, Err: err}
	}
	return c, nil
}

// Call executes one JSON-RPC method and returns the raw result payload.
// With maxRetries > 0, failed attempts are repeated with exponential backoff.
func (c *Client) Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}

	body, err := json.Marshal(Request{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		result, err := c.doRequest(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Backoff: 100ms, 200ms, 400ms...
		if attempt < c.maxRetries {
			backoff := time.Duration(1<<attempt) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	if c.maxRetries > 0 {
		return nil, fmt.Errorf("%s failed after %d attempts: %w", method, c.maxRetries+1, lastErr)
	}
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, body []byte) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 {
		return nil, fmt.Errorf("HTTP %d", httpResp.StatusCode)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	if resp.Error != nil {
		return nil, resp.Error
	}

	return resp.Result, nil
}

// ClientVersion reports the node's software banner (web3_clientVersion).
func (c *Client) ClientVersion(ctx context.Context) (string, error) {
	result, err := c.Call(ctx, "web3_clientVersion")
	if err != nil {
		return "", err
	}
	var version string
	if err := json.Unmarshal(result, &version); err != nil {
		return "", err
	}
	return version, nil
}

// ChainID fetches the chain identifier (eth_chainId).
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	return c.callUint64(ctx, "eth_chainId")
}

// BlockNumber fetches the current head height (eth_blockNumber).
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.callUint64(ctx, "eth_blockNumber")
}

func (c *Client) callUint64(ctx context.Context, method string) (uint64, error) {
	result, err := c.Call(ctx, method)
	if err != nil {
		return 0, err
	}
	var hexStr string
	if err := json.Unmarshal(result, &hexStr); err != nil {
		return 0, err
	}
	return ParseHexUint64(hexStr)
}

// BlockByNumber fetches one block (eth_getBlockByNumber). With fullTx the
// parsed block carries complete transaction objects; without it only the
// header fields are populated.
func (c *Client) BlockByNumber(ctx context.Context, number uint64, fullTx bool) (*ParsedBlock, error) {
	result, err := c.Call(ctx, "eth_getBlockByNumber", Uint64ToHex(number), fullTx)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, fmt.Errorf("block %d not found", number)
	}

	var block Block
	if err := json.Unmarshal(result, &block); err != nil {
		return nil, fmt.Errorf("decode block %d: %w", number, err)
	}
	return block.Parsed(fullTx)
}

// Metadata fetches chain id and head height concurrently. Best effort: the
// caller decides whether a failure matters.
func (c *Client) Metadata(ctx context.Context) (chainID, head uint64, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var e error
		chainID, e = c.ChainID(gctx)
		return e
	})
	g.Go(func() error {
		var e error
		head, e = c.BlockNumber(gctx)
		return e
	})
	err = g.Wait()
	return chainID, head, err
}
