package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exchange-core-service/audit"
	"exchange-core-service/config"
	"exchange-core-service/models"
	"exchange-core-service/staticerr"
	"exchange-core-service/storage"
)

type fakeWalletDirectory struct {
	wallets map[string]models.WalletModel
}

func (f *fakeWalletDirectory) add(wallet models.WalletModel) {
	f.wallets[wallet.Id] = wallet
}

func (f *fakeWalletDirectory) WalletById(ctx context.Context, walletId string) (*models.WalletModel, error) {
	wallet, ok := f.wallets[walletId]
	if !ok {
		return nil, staticerr.ErrorWalletNotFound
	}
	return &wallet, nil
}

func (f *fakeWalletDirectory) WalletFor(ctx context.Context, accountId string, currencyCode string) (*models.WalletModel, error) {
	for _, wallet := range f.wallets {
		if wallet.AccountId == accountId && wallet.CurrencyCode == currencyCode {
			w := wallet
			return &w, nil
		}
	}
	return nil, staticerr.ErrorWalletNotFound
}

type fakeChain struct {
	balances    map[string]ChainBalance
	unspent     map[string][]Unspent
	networkFee  int64
	failBalance bool
	signedCount int
	broadcasts  []string
}

func (f *fakeChain) GetBalance(ctx context.Context, coin string, address string, confirmations int) (ChainBalance, error) {
	if f.failBalance {
		return ChainBalance{}, errors.New("rpc unreachable")
	}
	return f.balances[address], nil
}

func (f *fakeChain) GetHeight(ctx context.Context, coin string) (int64, error) {
	return 100, nil
}

func (f *fakeChain) EstimateFee(ctx context.Context, coin string, txSizeBytes int64, targetBlocks int, mode string) (int64, error) {
	return f.networkFee, nil
}

func (f *fakeChain) GetUnspent(ctx context.Context, coin string, address string) ([]Unspent, error) {
	return f.unspent[address], nil
}

func (f *fakeChain) CreateRawTransaction(ctx context.Context, coin string, inputs []TxInput, outputs []TxOutput) (string, error) {
	return "raw", nil
}

func (f *fakeChain) SignTransaction(ctx context.Context, coin string, raw string, privateKeys []string) (string, error) {
	f.signedCount++
	return "signed", nil
}

func (f *fakeChain) Broadcast(ctx context.Context, coin string, signed string) (string, error) {
	f.broadcasts = append(f.broadcasts, signed)
	return "txid", nil
}

type fakeAddresses struct {
	counter int
}

func (f *fakeAddresses) NewAddress(ctx context.Context, walletId string, isChange bool) (string, error) {
	f.counter++
	return fmt.Sprintf("derived-%s-%d", walletId, f.counter), nil
}

func (f *fakeAddresses) IsAddressOwnedByWallet(ctx context.Context, address string, walletId string) (bool, error) {
	return address == mainAddress(walletId), nil
}

func (f *fakeAddresses) ListAddresses(ctx context.Context, walletId string) ([]string, error) {
	return []string{mainAddress(walletId)}, nil
}

func (f *fakeAddresses) ExchangeAddress(ctx context.Context, coin string) (string, error) {
	return "exchange-" + coin, nil
}

func mainAddress(walletId string) string {
	return "addr-" + walletId
}

type fakeNotifier struct {
	trades []models.TradeEvent
	orders []models.OrderEvent
}

func (f *fakeNotifier) PublishTrade(ctx context.Context, event models.TradeEvent) {
	f.trades = append(f.trades, event)
}

func (f *fakeNotifier) PublishOrder(ctx context.Context, event models.OrderEvent) {
	f.orders = append(f.orders, event)
}

// testCore wires every service against the in-memory store and fake
// collaborators, with generously funded wallets for two accounts on BTC-LTC.
type testCore struct {
	store      *storage.MemoryStore
	wallets    *fakeWalletDirectory
	chain      *fakeChain
	addrs      *fakeAddresses
	notifier   *fakeNotifier
	auditLog   *audit.ChainedLog
	cfg        config.Config
	orders     *OrderService
	matcher    *MatcherService
	balances   *BalanceService
	settlement *SettlementService
	sweep      *SweepService
	market     *MarketDataService
}

func newTestCore() *testCore {
	cfg := config.Default()
	cfg.ChainTimeout = time.Second

	store := storage.NewMemoryStore()
	wallets := &fakeWalletDirectory{wallets: make(map[string]models.WalletModel)}
	chain := &fakeChain{
		balances:   make(map[string]ChainBalance),
		unspent:    make(map[string][]Unspent),
		networkFee: 1,
	}
	addrs := &fakeAddresses{}
	notifier := &fakeNotifier{}
	auditLog := audit.NewChainedLog()
	fees := FlatFeePolicy{BasisPoints: cfg.FeeBasisPoints}

	core := &testCore{
		store:    store,
		wallets:  wallets,
		chain:    chain,
		addrs:    addrs,
		notifier: notifier,
		auditLog: auditLog,
		cfg:      cfg,
	}

	for _, accountId := range []string{"alice", "bob"} {
		for _, coin := range []string{"BTC", "LTC", "DOGE"} {
			core.fundWallet(accountId, coin, 1_000_000_000_000)
		}
	}

	core.balances = NewBalanceService(store, store, wallets, chain, addrs, fees, cfg)
	core.matcher = NewMatcherService(store, store, fees, notifier, auditLog)
	core.orders = NewOrderService(store, store, store, wallets, core.matcher, core.balances, fees, auditLog, cfg)
	core.settlement = NewSettlementService(store, store, store, wallets, chain, addrs, fees, auditLog, cfg)
	core.sweep = NewSweepService(store, notifier, auditLog, cfg)
	core.market = NewMarketDataService(store, store, cfg)

	return core
}

func (c *testCore) fundWallet(accountId, coin string, amount int64) string {
	walletId := accountId + "-" + coin
	c.wallets.add(models.WalletModel{
		Id:           walletId,
		AccountId:    accountId,
		CurrencyCode: coin,
		PrivateKey:   "key-" + walletId,
	})
	c.chain.balances[mainAddress(walletId)] = ChainBalance{Confirmed: amount}
	c.chain.unspent[mainAddress(walletId)] = []Unspent{
		{TxId: "utxo-" + walletId, Vout: 0, Value: amount},
	}
	return walletId
}

func (c *testCore) place(request PlaceOrderRequest) (*models.OrderModel, []models.TradeModel, error) {
	return c.orders.PlaceOrder(context.Background(), request)
}

func buyRequest(accountId string, volume, limit int64) PlaceOrderRequest {
	return PlaceOrderRequest{
		AccountId:  accountId,
		Cryptopair: "BTC-LTC",
		Side:       "buy",
		LimitPrice: limit,
		Volume:     volume,
	}
}

func sellRequest(accountId string, volume, limit int64) PlaceOrderRequest {
	return PlaceOrderRequest{
		AccountId:  accountId,
		Cryptopair: "BTC-LTC",
		Side:       "sell",
		LimitPrice: limit,
		Volume:     volume,
	}
}
