package service

import (
	"context"

	"exchange-core-service/models"
)

// ChainBalance is an address balance split by confirmation depth.
type ChainBalance struct {
	Confirmed int64
	Pending   int64
}

// Unspent is one spendable output of an address.
type Unspent struct {
	TxId    string
	Vout    int
	Value   int64
	Address string
}

// TxInput and TxOutput describe the consolidated settlement transfer handed
// to the blockchain collaborator.
type TxInput struct {
	TxId    string
	Vout    int
	Value   int64
	Address string
}

type TxOutput struct {
	Address string
	Value   int64
}

// ChainClient is the blockchain node collaborator. All calls may hit the
// network and must respect the context deadline.
type ChainClient interface {
	GetBalance(ctx context.Context, coin string, address string, confirmations int) (ChainBalance, error)
	GetHeight(ctx context.Context, coin string) (int64, error)
	EstimateFee(ctx context.Context, coin string, txSizeBytes int64, targetBlocks int, mode string) (int64, error)
	GetUnspent(ctx context.Context, coin string, address string) ([]Unspent, error)
	CreateRawTransaction(ctx context.Context, coin string, inputs []TxInput, outputs []TxOutput) (string, error)
	SignTransaction(ctx context.Context, coin string, raw string, privateKeys []string) (string, error)
	Broadcast(ctx context.Context, coin string, signed string) (string, error)
}

// AddressProvider is the HD-wallet collaborator deriving and recognizing
// addresses.
type AddressProvider interface {
	NewAddress(ctx context.Context, walletId string, isChange bool) (string, error)
	IsAddressOwnedByWallet(ctx context.Context, address string, walletId string) (bool, error)
	ListAddresses(ctx context.Context, walletId string) ([]string, error)
	ExchangeAddress(ctx context.Context, coin string) (string, error)
}

// WalletDirectory resolves wallets without owning them. WalletFor finds the
// account's wallet holding the given currency.
type WalletDirectory interface {
	WalletById(ctx context.Context, walletId string) (*models.WalletModel, error)
	WalletFor(ctx context.Context, accountId string, currencyCode string) (*models.WalletModel, error)
}

// Notifier publishes fire-and-forget trade and order events. Failures are
// logged by implementations and never surface to the caller.
type Notifier interface {
	PublishTrade(ctx context.Context, event models.TradeEvent)
	PublishOrder(ctx context.Context, event models.OrderEvent)
}
