package chainrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	"github.com/yungbote/netgenealogy-backend/internal/observability"
	"github.com/yungbote/netgenealogy-backend/internal/platform/envutil"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
)

const defaultTimeout = 15 * time.Second

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ErrBadResponse reports a response the client could not interpret.
var ErrBadResponse = errors.New("chainrpc: bad response")

// BlockReader looks up canonical blocks. A nil block with a nil error means the height is unknown.
type BlockReader interface {
	BlockByHeight(ctx context.Context, height int64) (*types.HistoricBlock, error)
}

// TxReader finds the block that mined a transaction. A nil block with a nil error means the
// transaction is unknown or still pending.
type TxReader interface {
	TransactionBlock(ctx context.Context, txHash string) (*types.HistoricBlock, error)
}

// Reader is what a single chain endpoint offers.
type Reader interface {
	BlockReader
	TxReader
}

// Client is a minimal Ethereum JSON-RPC client over HTTP.
type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
	log     *logger.Logger
	nextID  atomic.Uint64

	maxRetries int
	retryBase  time.Duration
}

func NewClient(url string, timeout time.Duration, log *logger.Logger) (*Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("chainrpc: missing url")
	}
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:     url,
		http:    &http.Client{},
		timeout: timeout,
		log:     log.With("client", "ChainRPC", "rpc_url", url),

		maxRetries: max(envutil.Int("CHAIN_RPC_MAX_RETRIES", 2), 0),
		retryBase:  envutil.Millis("CHAIN_RPC_RETRY_BACKOFF_MS", 250),
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

type rpcBlock struct {
	Number string `json:"number"`
	Hash   string `json:"hash"`
}

type rpcTransaction struct {
	BlockNumber *string `json:"blockNumber"`
	BlockHash   *string `json:"blockHash"`
}

func (c *Client) BlockByHeight(ctx context.Context, height int64) (*types.HistoricBlock, error) {
	if height < 0 {
		return nil, fmt.Errorf("chainrpc: negative height %d", height)
	}
	var raw json.RawMessage
	if err := c.call(ctx, "eth_getBlockByNumber", []any{"0x" + strconv.FormatInt(height, 16), false}, &raw); err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var b rpcBlock
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("%w: block: %v", ErrBadResponse, err)
	}
	n, err := parseQuantity(b.Number)
	if err != nil {
		return nil, err
	}
	if b.Hash == "" {
		return nil, fmt.Errorf("%w: block %d without hash", ErrBadResponse, height)
	}
	if n != height {
		return nil, fmt.Errorf("%w: asked for block %d, got %d", ErrBadResponse, height, n)
	}
	return &types.HistoricBlock{Height: n, Hash: types.NormalizeHash(b.Hash)}, nil
}

func (c *Client) TransactionBlock(ctx context.Context, txHash string) (*types.HistoricBlock, error) {
	txHash = types.NormalizeHash(txHash)
	if txHash == "" {
		return nil, fmt.Errorf("chainrpc: missing transaction hash")
	}
	var raw json.RawMessage
	if err := c.call(ctx, "eth_getTransactionByHash", []any{txHash}, &raw); err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var tx rpcTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("%w: transaction: %v", ErrBadResponse, err)
	}
	if tx.BlockNumber == nil || tx.BlockHash == nil || *tx.BlockHash == "" {
		return nil, nil
	}
	n, err := parseQuantity(*tx.BlockNumber)
	if err != nil {
		return nil, err
	}
	return &types.HistoricBlock{Height: n, Hash: types.NormalizeHash(*tx.BlockHash)}, nil
}

func (c *Client) call(ctx context.Context, method string, params []any, out *json.RawMessage) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := otel.Tracer("chainrpc").Start(ctx, "chainrpc."+method)
	began := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		observability.Current().ObserveRPC(method, status, time.Since(began))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("rpc.method", method))

	backoff := c.retryBase
	for attempt := 0; ; attempt++ {
		resp, raw, err := c.doOnce(ctx, method, params)
		if err == nil {
			return c.decode(method, raw, out)
		}
		if attempt >= c.maxRetries || ctx.Err() != nil || !retryable(err) {
			return err
		}
		sleepFor := jitter(retryAfter(resp, backoff, 10*time.Second))
		c.log.Warn("chain rpc retrying", "method", method, "attempt", attempt+1, "sleep", sleepFor.String(), "error", err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}
}

// doOnce posts one request under the per-call timeout. resp is returned (body drained) so
// Retry-After can be honoured.
func (c *Client) doOnce(ctx context.Context, method string, params []any) (*http.Response, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("chainrpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return resp, nil, fmt.Errorf("chainrpc %s: read body: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil, &HTTPError{Method: method, StatusCode: resp.StatusCode}
	}
	c.log.Debug("chain rpc call", "method", method, "duration_ms", time.Since(start).Milliseconds())
	return resp, raw, nil
}

func (c *Client) decode(method string, raw []byte, out *json.RawMessage) error {
	var rr rpcResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadResponse, method, err)
	}
	if rr.Error != nil {
		return fmt.Errorf("chainrpc %s: %w", method, rr.Error)
	}
	*out = rr.Result
	return nil
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

func parseQuantity(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, fmt.Errorf("%w: quantity %q", ErrBadResponse, s)
	}
	n, err := strconv.ParseInt(s[2:], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: quantity %q: %v", ErrBadResponse, s, err)
	}
	return n, nil
}
