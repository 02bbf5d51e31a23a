package wallet

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provider selects the wallet backend.
type Provider string

const (
	// ProviderSimulated keeps all payments in process. Demo and test mode.
	ProviderSimulated Provider = "simulated"
	// ProviderRPC talks to an Ethereum-compatible JSON-RPC endpoint.
	ProviderRPC Provider = "rpc"
)

// Receipt is the record of a sent payment. Simulated is true when no real
// value moved, so downstream consumers can label demo transactions.
type Receipt struct {
	TransactionHash string          `json:"transactionHash"`
	From            string          `json:"from"`
	To              string          `json:"to"`
	Amount          decimal.Decimal `json:"amount"`
	Simulated       bool            `json:"simulated"`
}

// Connector is the payment collaborator behind the purchase flow. Amounts
// are in base currency units; unit conversion is a connector concern.
type Connector interface {
	// Provider reports which backend this connector is.
	Provider() Provider

	// Connect establishes the session and returns the active account
	// address.
	Connect(ctx context.Context) (string, error)

	// CurrentAccount returns the active account, empty when disconnected.
	CurrentAccount() string

	// OnAccountChange registers a callback invoked with the new address
	// whenever the active account switches.
	OnAccountChange(fn func(account string))

	// SendPayment transfers amount to the recipient and returns a receipt.
	SendPayment(ctx context.Context, to string, amount decimal.Decimal) (*Receipt, error)

	// VerifyPayment confirms that txHash is a settled payment of amount to
	// the recipient.
	VerifyPayment(ctx context.Context, txHash, to string, amount decimal.Decimal) error

	// Close releases the session.
	Close(ctx context.Context) error
}
