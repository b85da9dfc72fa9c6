package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"exchange-core-service/config"
	"exchange-core-service/models"
	"exchange-core-service/utils"
)

type BalanceService struct {
	orders  iOrderStorage
	trades  iTradeStorage
	wallets WalletDirectory
	chain   ChainClient
	addrs   AddressProvider
	fees    FeePolicy
	cfg     config.Config
}

func NewBalanceService(orders iOrderStorage, trades iTradeStorage, wallets WalletDirectory, chain ChainClient, addrs AddressProvider, fees FeePolicy, cfg config.Config) *BalanceService {
	return &BalanceService{
		orders:  orders,
		trades:  trades,
		wallets: wallets,
		chain:   chain,
		addrs:   addrs,
		fees:    fees,
		cfg:     cfg,
	}
}

// AvailableBalance computes the wallet's balance picture at the current
// order/trade snapshot. A failing chain read degrades that address to zero
// and bumps the error count instead of failing the call.
func (b *BalanceService) AvailableBalance(ctx context.Context, walletId string) (*models.BalanceModel, error) {
	wallet, err := b.wallets.WalletById(ctx, walletId)

	if err != nil {
		return nil, err
	}

	balance := &models.BalanceModel{}

	addresses, err := b.addrs.ListAddresses(ctx, wallet.Id)

	if err != nil {
		logrus.WithField("walletId", wallet.Id).Warningln("Address listing failed: ", err.Error())
		balance.Errors++
	}

	for _, address := range addresses {
		chainCtx, cancel := context.WithTimeout(ctx, b.cfg.ChainTimeout)
		onChain, err := b.chain.GetBalance(chainCtx, wallet.CurrencyCode, address, b.cfg.Confirmations)
		cancel()

		if err != nil {
			logrus.WithFields(logrus.Fields{
				"walletId": wallet.Id,
				"address":  address}).Warningln("Chain balance read failed: ", err.Error())
			balance.Errors++
			continue
		}

		balance.Blockchain += onChain.Confirmed
		balance.Pending += onChain.Pending
	}

	out, err := b.outstandingOut(ctx, *wallet)

	if err != nil {
		return nil, err
	}

	in, err := b.unsettledIn(ctx, *wallet)

	if err != nil {
		return nil, err
	}

	balance.Withdrawal = balance.Blockchain - out
	balance.Trading = balance.Withdrawal + in

	return balance, nil
}

// outstandingOut sums what the wallet has already committed: open orders
// disposing its currency plus trade legs not yet settled out.
func (b *BalanceService) outstandingOut(ctx context.Context, wallet models.WalletModel) (int64, error) {
	orders, err := b.orders.OpenOrdersByWallet(ctx, wallet.Id)

	if err != nil {
		return 0, err
	}

	var total int64

	for _, orderInfo := range orders {
		if orderInfo.DisposedCurrency() != wallet.CurrencyCode {
			continue
		}
		if orderInfo.Side == models.SideBuy {
			total += orderInfo.Volume
			continue
		}
		total += b.baseEquivalent(ctx, orderInfo)
	}

	buyOuts, err := b.trades.TradesByLegState(ctx, models.LegBuyOut, models.SettledNone)

	if err != nil {
		return 0, err
	}

	for _, tradeInfo := range buyOuts {
		if tradeInfo.BuyWalletId == wallet.Id {
			total += tradeInfo.Volume
		}
	}

	sellOuts, err := b.trades.TradesByLegState(ctx, models.LegSellOut, models.SettledNone)

	if err != nil {
		return 0, err
	}

	for _, tradeInfo := range sellOuts {
		if tradeInfo.SellWalletId == wallet.Id {
			total += tradeInfo.BaseVolume
		}
	}

	return total, nil
}

// baseEquivalent is the base-currency amount an open sell disposes. A market
// sell prices against the last trade; with no history it contributes nothing,
// which is the conservative direction for a disposal estimate.
func (b *BalanceService) baseEquivalent(ctx context.Context, orderInfo models.OrderModel) int64 {
	price := orderInfo.LimitPrice

	if price == 0 {
		last, err := b.trades.LastTrades(ctx, orderInfo.Cryptopair, 1)
		if err != nil || len(last) == 0 {
			return 0
		}
		price = last[0].Price
	}

	return utils.ConvertQuoteToBase(orderInfo.Volume, price)
}

// unsettledIn sums fills owed to this wallet's currency from the account's
// trades whose in leg has not settled, each net of its fee.
func (b *BalanceService) unsettledIn(ctx context.Context, wallet models.WalletModel) (int64, error) {
	var total int64

	buyIns, err := b.trades.TradesByLegState(ctx, models.LegBuyIn, models.SettledNone)

	if err != nil {
		return 0, err
	}

	for _, tradeInfo := range buyIns {
		if tradeInfo.BuyAccountId == wallet.AccountId && tradeInfo.BaseCurrency == wallet.CurrencyCode {
			total += tradeInfo.BaseVolume - b.fees.TradeFee(tradeInfo.BuyAccountId, tradeInfo.BaseVolume)
		}
	}

	sellIns, err := b.trades.TradesByLegState(ctx, models.LegSellIn, models.SettledNone)

	if err != nil {
		return 0, err
	}

	for _, tradeInfo := range sellIns {
		if tradeInfo.SellAccountId == wallet.AccountId && tradeInfo.QuoteCurrency == wallet.CurrencyCode {
			total += tradeInfo.Volume - tradeInfo.SellFee
		}
	}

	return total, nil
}
