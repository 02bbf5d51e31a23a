package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"ticketpass/models"
	"ticketpass/utils"
)

// weiPerCoin converts base currency units to wei at the chain boundary.
var weiPerCoin = decimal.New(1, 18)

// RPC talks to an Ethereum-compatible node over JSON-RPC. Calls run through
// a circuit breaker so a dead node fails fast instead of stacking timeouts
// inside the purchase flow.
type RPC struct {
	endpoint string
	client   *http.Client
	breaker  *utils.CircuitBreaker
	nextID   atomic.Int64

	mu        sync.Mutex
	account   string
	listeners []func(string)
}

func NewRPC(endpoint string, timeout time.Duration) *RPC {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RPC{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		breaker:  utils.NewCircuitBreaker("wallet-rpc", 5, 30*time.Second),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int64  `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (w *RPC) call(ctx context.Context, method string, params []any, result any) error {
	_, err := w.breaker.Execute(ctx, func() (any, error) {
		body, err := json.Marshal(rpcRequest{
			JSONRPC: "2.0",
			Method:  method,
			Params:  params,
			ID:      w.nextID.Add(1),
		})
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("rpc endpoint returned %s", resp.Status)
		}

		var decoded rpcResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return nil, fmt.Errorf("decode rpc response: %w", err)
		}
		if decoded.Error != nil {
			return nil, decoded.Error
		}
		if result != nil {
			if err := json.Unmarshal(decoded.Result, result); err != nil {
				return nil, fmt.Errorf("decode rpc result: %w", err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (w *RPC) Provider() Provider {
	return ProviderRPC
}

func (w *RPC) Connect(ctx context.Context) (string, error) {
	var accounts []string
	if err := w.call(ctx, "eth_requestAccounts", []any{}, &accounts); err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "", models.ErrWalletNotConnected
	}

	w.mu.Lock()
	changed := !strings.EqualFold(w.account, accounts[0])
	w.account = accounts[0]
	account := w.account
	listeners := append([]func(string){}, w.listeners...)
	w.mu.Unlock()

	if changed {
		for _, fn := range listeners {
			fn(account)
		}
	}
	return account, nil
}

func (w *RPC) CurrentAccount() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.account
}

func (w *RPC) OnAccountChange(fn func(account string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

func (w *RPC) SendPayment(ctx context.Context, to string, amount decimal.Decimal) (*Receipt, error) {
	from := w.CurrentAccount()
	if from == "" {
		return nil, models.ErrWalletNotConnected
	}

	tx := map[string]string{
		"from":  from,
		"to":    to,
		"value": hexWei(amount),
	}
	var txHash string
	if err := w.call(ctx, "eth_sendTransaction", []any{tx}, &txHash); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPaymentFailed, err)
	}

	return &Receipt{
		TransactionHash: txHash,
		From:            from,
		To:              to,
		Amount:          amount,
	}, nil
}

func (w *RPC) VerifyPayment(ctx context.Context, txHash, to string, amount decimal.Decimal) error {
	var tx *struct {
		From  string `json:"from"`
		To    string `json:"to"`
		Value string `json:"value"`
	}
	if err := w.call(ctx, "eth_getTransactionByHash", []any{txHash}, &tx); err != nil {
		return err
	}
	if tx == nil {
		return fmt.Errorf("%w: transaction not found", models.ErrPaymentFailed)
	}
	if !strings.EqualFold(tx.To, to) {
		return fmt.Errorf("%w: recipient mismatch", models.ErrPaymentFailed)
	}

	value, err := parseHexWei(tx.Value)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrPaymentFailed, err)
	}
	expected := amount.Mul(weiPerCoin).BigInt()
	if value.Cmp(expected) < 0 {
		return fmt.Errorf("%w: paid %s wei, expected %s wei",
			models.ErrPaymentFailed, value, expected)
	}
	return nil
}

func (w *RPC) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.account = ""
	return nil
}

func hexWei(amount decimal.Decimal) string {
	return "0x" + amount.Mul(weiPerCoin).BigInt().Text(16)
}

func parseHexWei(value string) (*big.Int, error) {
	parsed, ok := new(big.Int).SetString(strings.TrimPrefix(value, "0x"), 16)
	if !ok {
		return nil, fmt.Errorf("malformed transaction value %q", value)
	}
	return parsed, nil
}
