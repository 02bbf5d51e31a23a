package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"ticketpass/models"
	"ticketpass/utils"
)

// Simulated is the in-process wallet. It mints a throwaway account on
// connect and settles every payment instantly, remembering each one so
// VerifyPayment only confirms hashes it actually issued.
type Simulated struct {
	mu        sync.Mutex
	account   string
	payments  map[string]simPayment
	listeners []func(string)
}

type simPayment struct {
	from   string
	to     string
	amount decimal.Decimal
}

func NewSimulated() *Simulated {
	return &Simulated{
		payments: make(map[string]simPayment),
	}
}

func (w *Simulated) Provider() Provider {
	return ProviderSimulated
}

func (w *Simulated) Connect(ctx context.Context) (string, error) {
	w.mu.Lock()
	if w.account == "" {
		address, err := utils.GenerateAddress()
		if err != nil {
			w.mu.Unlock()
			return "", fmt.Errorf("generate simulated account: %w", err)
		}
		w.account = address
	}
	account := w.account
	listeners := append([]func(string){}, w.listeners...)
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(account)
	}
	return account, nil
}

func (w *Simulated) CurrentAccount() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.account
}

func (w *Simulated) OnAccountChange(fn func(account string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// SwitchAccount replaces the active account and notifies listeners. Drives
// the account-change path without a real wallet extension behind it.
func (w *Simulated) SwitchAccount(account string) {
	w.mu.Lock()
	w.account = account
	listeners := append([]func(string){}, w.listeners...)
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(account)
	}
}

func (w *Simulated) SendPayment(ctx context.Context, to string, amount decimal.Decimal) (*Receipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.account == "" {
		return nil, models.ErrWalletNotConnected
	}

	txHash, err := utils.GenerateTxHash()
	if err != nil {
		return nil, fmt.Errorf("generate transaction hash: %w", err)
	}

	w.payments[txHash] = simPayment{from: w.account, to: to, amount: amount}
	return &Receipt{
		TransactionHash: txHash,
		From:            w.account,
		To:              to,
		Amount:          amount,
		Simulated:       true,
	}, nil
}

func (w *Simulated) VerifyPayment(ctx context.Context, txHash, to string, amount decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	payment, ok := w.payments[txHash]
	if !ok {
		return fmt.Errorf("%w: unknown transaction", models.ErrPaymentFailed)
	}
	if payment.to != to {
		return fmt.Errorf("%w: recipient mismatch", models.ErrPaymentFailed)
	}
	if !payment.amount.Equal(amount) {
		return fmt.Errorf("%w: amount mismatch, paid %s expected %s",
			models.ErrPaymentFailed, payment.amount, amount)
	}
	return nil
}

func (w *Simulated) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.account = ""
	return nil
}
