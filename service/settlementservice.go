package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"exchange-core-service/audit"
	"exchange-core-service/config"
	"exchange-core-service/models"
	"exchange-core-service/staticerr"
)

// settlementLegs is the processing order of the four obligations per coin.
// Base currency moves on sell-out and buy-in, quote on buy-out and sell-in.
var settlementLegs = []models.TradeLeg{
	models.LegSellOut, models.LegBuyIn, models.LegBuyOut, models.LegSellIn,
}

type legRef struct {
	tradeId int64
	leg     models.TradeLeg
	entry   models.LedgerEntry
}

type SettlementService struct {
	trades   iTradeStorage
	orders   iOrderStorage
	locks    iLockStorage
	wallets  WalletDirectory
	chain    ChainClient
	addrs    AddressProvider
	fees     FeePolicy
	auditLog audit.Sink
	cfg      config.Config
}

func NewSettlementService(trades iTradeStorage, orders iOrderStorage, locks iLockStorage, wallets WalletDirectory, chain ChainClient, addrs AddressProvider, fees FeePolicy, auditLog audit.Sink, cfg config.Config) *SettlementService {
	return &SettlementService{
		trades:   trades,
		orders:   orders,
		locks:    locks,
		wallets:  wallets,
		chain:    chain,
		addrs:    addrs,
		fees:     fees,
		auditLog: auditLog,
		cfg:      cfg,
	}
}

// RunSettlementBatch consolidates unsettled trade legs into one signed
// transfer per coin. At most one batch runs at a time; a coin that cannot
// settle this run is left for the next one. Returns the number of trades
// whose legs moved to pending.
func (s *SettlementService) RunSettlementBatch(ctx context.Context) (int, error) {
	token := uuid.NewString()

	if err := s.locks.TryLockSettlement(ctx, token); err != nil {
		return 0, staticerr.ErrorSettlementRunning
	}
	defer func() {
		if err := s.locks.UnlockSettlement(ctx, token); err != nil {
			logrus.Warningln("Unlock settlement failed: ", err.Error())
		}
	}()

	coins := make([]string, 0, len(s.cfg.Coins))
	for coin := range s.cfg.Coins {
		coins = append(coins, coin)
	}
	sort.Strings(coins)

	settled := 0

	for _, coin := range coins {
		count, err := s.settleCoin(ctx, coin)

		if err != nil {
			logrus.WithField("coin", coin).Warningln("Coin settlement aborted: ", err.Error())
			continue
		}

		settled += count
	}

	return settled, nil
}

func (s *SettlementService) settleCoin(ctx context.Context, coin string) (int, error) {
	refs, errored, err := s.collectLedger(ctx, coin)

	if err != nil {
		return 0, err
	}

	if len(refs) == 0 && errored == 0 {
		return 0, nil
	}

	net, feeTotal := aggregate(refs)

	insufficient, err := s.checkDebitCoverage(ctx, coin, refs, net)

	if err != nil {
		return 0, err
	}
	errored += insufficient

	if errored > 0 {
		return 0, staticerr.ErrorSettlementAborted
	}

	var balance int64
	for _, ref := range refs {
		balance += ref.entry.Volume + ref.entry.Fee
	}
	if balance != 0 {
		return 0, staticerr.ErrorUnbalancedLedger
	}

	touched, err := s.advanceLegs(ctx, refs, models.SettledValid)

	if err != nil {
		return 0, err
	}

	for _, tradeId := range touched {
		fresh, err := s.trades.GetTrade(ctx, tradeId)
		if err != nil {
			return 0, err
		}
		if fresh.AnyLegInError() {
			return 0, staticerr.ErrorSettlementAborted
		}
	}

	ok, err := s.buildAndSign(ctx, coin, net, feeTotal)

	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, nil
	}

	touched, err = s.advanceLegs(ctx, refs, models.SettledPending)

	if err != nil {
		return 0, err
	}

	for _, tradeId := range touched {
		s.auditLog.Append(ctx, uuid.NewString(), "trade", strconv.FormatInt(tradeId, 10), "settlement_pending", coin)
	}

	return len(touched), nil
}

// collectLedger selects every eligible leg of the coin and turns it into a
// ledger entry. Timestamp violations fail only the offending leg.
func (s *SettlementService) collectLedger(ctx context.Context, coin string) ([]legRef, int, error) {
	var refs []legRef
	errored := 0
	now := time.Now().UTC().UnixMilli()

	for _, leg := range settlementLegs {
		trades, err := s.trades.SettlementLegTrades(ctx, leg, coin)

		if err != nil {
			return nil, 0, err
		}

		for _, tradeInfo := range trades {
			if reason := s.timestampViolation(ctx, tradeInfo, now); reason != "" {
				s.failLeg(ctx, tradeInfo.Id, leg, reason)
				errored++
				continue
			}

			entry, err := s.ledgerEntry(ctx, tradeInfo, leg)

			if err != nil {
				s.failLeg(ctx, tradeInfo.Id, leg, "receiving wallet unresolved")
				errored++
				continue
			}

			refs = append(refs, legRef{tradeId: tradeInfo.Id, leg: leg, entry: entry})
		}
	}

	return refs, errored, nil
}

func (s *SettlementService) timestampViolation(ctx context.Context, tradeInfo models.TradeModel, nowMillis int64) string {
	if tradeInfo.Created > nowMillis {
		return "trade created in the future"
	}

	for _, orderId := range []string{tradeInfo.BuyOrderId, tradeInfo.SellOrderId} {
		orderInfo, err := s.orders.GetOrder(ctx, orderId)
		if err != nil {
			return "constituent order missing"
		}
		if orderInfo.Created > nowMillis {
			return "order created in the future"
		}
		if tradeInfo.Created < orderInfo.Created {
			return "trade precedes order " + orderId
		}
	}

	return ""
}

// ledgerEntry prices one leg: out legs debit the payer's full volume with no
// fee, in legs credit the receiver net of a fee recomputed on the leg's own
// volume. The fee accrues to the exchange pseudo-wallet.
func (s *SettlementService) ledgerEntry(ctx context.Context, tradeInfo models.TradeModel, leg models.TradeLeg) (models.LedgerEntry, error) {
	entry := models.LedgerEntry{TradeId: tradeInfo.Id, Leg: leg}

	switch leg {
	case models.LegSellOut:
		entry.Currency = tradeInfo.BaseCurrency
		entry.WalletId = tradeInfo.SellWalletId
		entry.Volume = -tradeInfo.BaseVolume
	case models.LegBuyOut:
		entry.Currency = tradeInfo.QuoteCurrency
		entry.WalletId = tradeInfo.BuyWalletId
		entry.Volume = -tradeInfo.Volume
	case models.LegBuyIn:
		wallet, err := s.wallets.WalletFor(ctx, tradeInfo.BuyAccountId, tradeInfo.BaseCurrency)
		if err != nil {
			return entry, err
		}
		fee := s.fees.TradeFee(tradeInfo.BuyAccountId, tradeInfo.BaseVolume)
		entry.Currency = tradeInfo.BaseCurrency
		entry.WalletId = wallet.Id
		entry.Volume = tradeInfo.BaseVolume - fee
		entry.Fee = fee
	case models.LegSellIn:
		wallet, err := s.wallets.WalletFor(ctx, tradeInfo.SellAccountId, tradeInfo.QuoteCurrency)
		if err != nil {
			return entry, err
		}
		entry.Currency = tradeInfo.QuoteCurrency
		entry.WalletId = wallet.Id
		entry.Volume = tradeInfo.Volume - tradeInfo.SellFee
		entry.Fee = tradeInfo.SellFee
	}

	return entry, nil
}

func aggregate(refs []legRef) (map[string]int64, int64) {
	net := make(map[string]int64)
	var feeTotal int64

	for _, ref := range refs {
		net[ref.entry.WalletId] += ref.entry.Volume
		feeTotal += ref.entry.Fee
	}

	return net, feeTotal
}

// checkDebitCoverage verifies every net-debited wallet holds enough on chain.
// An uncovered wallet fails every leg touching it this run.
func (s *SettlementService) checkDebitCoverage(ctx context.Context, coin string, refs []legRef, net map[string]int64) (int, error) {
	errored := 0

	wallets := make([]string, 0, len(net))
	for walletId := range net {
		wallets = append(wallets, walletId)
	}
	sort.Strings(wallets)

	for _, walletId := range wallets {
		debit := -net[walletId]
		if debit <= 0 {
			continue
		}

		onChain, err := s.walletChainBalance(ctx, coin, walletId)

		if err != nil {
			return 0, staticerr.ErrorChainUnavailable
		}

		if onChain >= debit {
			continue
		}

		logrus.WithFields(logrus.Fields{
			"coin":     coin,
			"walletId": walletId,
			"debit":    debit,
			"onChain":  onChain}).Warningln("Wallet cannot cover net debit")

		for _, ref := range refs {
			if ref.entry.WalletId == walletId {
				s.failLeg(ctx, ref.tradeId, ref.leg, fmt.Sprintf("wallet %s balance below net debit", walletId))
				errored++
			}
		}
	}

	return errored, nil
}

func (s *SettlementService) walletChainBalance(ctx context.Context, coin string, walletId string) (int64, error) {
	addresses, err := s.addrs.ListAddresses(ctx, walletId)

	if err != nil {
		return 0, err
	}

	var total int64

	for _, address := range addresses {
		chainCtx, cancel := context.WithTimeout(ctx, s.cfg.ChainTimeout)
		onChain, err := s.chain.GetBalance(chainCtx, coin, address, s.cfg.Confirmations)
		cancel()

		if err != nil {
			return 0, err
		}

		total += onChain.Confirmed
	}

	return total, nil
}

// advanceLegs moves every collected leg to the target state, one update per
// trade, and returns the distinct trade ids touched.
func (s *SettlementService) advanceLegs(ctx context.Context, refs []legRef, target models.SettlementStatus) ([]int64, error) {
	byTrade := make(map[int64][]models.TradeLeg)
	for _, ref := range refs {
		byTrade[ref.tradeId] = append(byTrade[ref.tradeId], ref.leg)
	}

	ids := make([]int64, 0, len(byTrade))
	for tradeId := range byTrade {
		ids = append(ids, tradeId)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, tradeId := range ids {
		tradeInfo, err := s.trades.GetTrade(ctx, tradeId)

		if err != nil {
			return nil, err
		}

		for _, leg := range byTrade[tradeId] {
			tradeInfo.AdvanceLeg(leg, target)
		}

		if err = s.trades.UpdateTrade(ctx, *tradeInfo); err != nil {
			return nil, err
		}
	}

	return ids, nil
}

// buildAndSign constructs, signs and hands off the consolidated transfer for
// one coin. Returns false without error when the network fee exceeds the
// collected exchange fee, leaving legs validated for the next run.
func (s *SettlementService) buildAndSign(ctx context.Context, coin string, net map[string]int64, feeTotal int64) (bool, error) {
	var inputs []TxInput
	var outputs []TxOutput
	var privateKeys []string

	wallets := make([]string, 0, len(net))
	for walletId := range net {
		wallets = append(wallets, walletId)
	}
	sort.Strings(wallets)

	for _, walletId := range wallets {
		amount := net[walletId]

		if amount < 0 {
			selected, change, err := s.selectInputs(ctx, coin, walletId, -amount)
			if err != nil {
				return false, err
			}

			inputs = append(inputs, selected...)

			if change > 0 {
				changeAddress, err := s.addrs.NewAddress(ctx, walletId, true)
				if err != nil {
					return false, err
				}
				outputs = append(outputs, TxOutput{Address: changeAddress, Value: change})
			}

			wallet, err := s.wallets.WalletById(ctx, walletId)
			if err != nil {
				return false, err
			}
			privateKeys = append(privateKeys, wallet.PrivateKey)
			continue
		}

		if amount > 0 {
			address, err := s.addrs.NewAddress(ctx, walletId, false)
			if err != nil {
				return false, err
			}
			outputs = append(outputs, TxOutput{Address: address, Value: amount})
		}
	}

	if len(inputs) == 0 {
		return false, nil
	}

	vin := int64(len(inputs))
	vout := int64(len(outputs))
	txSize := vin*180 + (vout+1)*34 + 10 + vin

	networkFee, err := s.chain.EstimateFee(ctx, coin, txSize, s.cfg.Settlement.TargetBlocks, s.cfg.Settlement.EstimateMode)

	if err != nil {
		return false, staticerr.ErrorChainUnavailable
	}

	if networkFee > feeTotal {
		logrus.WithFields(logrus.Fields{
			"coin":       coin,
			"networkFee": networkFee,
			"feeTotal":   feeTotal}).Infoln("Network fee exceeds collected fees, coin postponed")
		return false, nil
	}

	if exchangeValue := feeTotal - networkFee; exchangeValue > 0 {
		exchangeAddress, err := s.addrs.ExchangeAddress(ctx, coin)
		if err != nil {
			return false, err
		}
		outputs = append(outputs, TxOutput{Address: exchangeAddress, Value: exchangeValue})
	}

	raw, err := s.chain.CreateRawTransaction(ctx, coin, inputs, outputs)

	if err != nil {
		return false, err
	}

	signed, err := s.chain.SignTransaction(ctx, coin, raw, privateKeys)

	if err != nil {
		return false, err
	}

	txId, err := s.chain.Broadcast(ctx, coin, signed)

	if err != nil {
		logrus.WithField("coin", coin).Warningln("Broadcast handoff failed: ", err.Error())
	} else {
		logrus.WithFields(logrus.Fields{"coin": coin, "txId": txId}).Infoln("Settlement transaction handed off")
	}

	return true, nil
}

// selectInputs picks unspent outputs of the wallet covering the debit,
// largest first, and returns the surplus as change.
func (s *SettlementService) selectInputs(ctx context.Context, coin string, walletId string, debit int64) ([]TxInput, int64, error) {
	addresses, err := s.addrs.ListAddresses(ctx, walletId)

	if err != nil {
		return nil, 0, err
	}

	var available []Unspent

	for _, address := range addresses {
		unspent, err := s.chain.GetUnspent(ctx, coin, address)
		if err != nil {
			return nil, 0, staticerr.ErrorChainUnavailable
		}
		for i := range unspent {
			if unspent[i].Address == "" {
				unspent[i].Address = address
			}
		}
		available = append(available, unspent...)
	}

	sort.Slice(available, func(i, j int) bool { return available[i].Value > available[j].Value })

	var inputs []TxInput
	var total int64

	for _, utxo := range available {
		if total >= debit {
			break
		}
		inputs = append(inputs, TxInput{TxId: utxo.TxId, Vout: utxo.Vout, Value: utxo.Value, Address: utxo.Address})
		total += utxo.Value
	}

	if total < debit {
		return nil, 0, staticerr.ErrorInsufficientFunds
	}

	return inputs, total - debit, nil
}

func (s *SettlementService) failLeg(ctx context.Context, tradeId int64, leg models.TradeLeg, reason string) {
	tradeInfo, err := s.trades.GetTrade(ctx, tradeId)

	if err != nil {
		logrus.WithField("tradeId", tradeId).Errorln("Cannot load trade to fail leg: ", err.Error())
		return
	}

	if !tradeInfo.AdvanceLeg(leg, models.SettledError) {
		return
	}

	if err = s.trades.UpdateTrade(ctx, *tradeInfo); err != nil {
		logrus.WithField("tradeId", tradeId).Errorln("Cannot persist failed leg: ", err.Error())
		return
	}

	s.auditLog.Append(ctx, uuid.NewString(), "trade", strconv.FormatInt(tradeId, 10), "settlement_error", leg.String()+": "+reason)
	logrus.WithFields(logrus.Fields{
		"tradeId": tradeId,
		"leg":     leg.String()}).Warningln("Settlement leg failed: ", reason)
}

// MarkLegComplete is the confirmation watcher's entry point for the final
// pending to complete transition.
func (s *SettlementService) MarkLegComplete(ctx context.Context, tradeId int64, leg models.TradeLeg) error {
	tradeInfo, err := s.trades.GetTrade(ctx, tradeId)

	if err != nil {
		return err
	}

	if !tradeInfo.AdvanceLeg(leg, models.SettledComplete) {
		return staticerr.ErrorSettlementAborted
	}

	if err = s.trades.UpdateTrade(ctx, *tradeInfo); err != nil {
		return err
	}

	s.auditLog.Append(ctx, uuid.NewString(), "trade", strconv.FormatInt(tradeId, 10), "settlement_complete", leg.String())
	return nil
}

// ClearLegError is the operator override returning an errored leg to the
// unsettled state after the underlying cause has been corrected.
func (s *SettlementService) ClearLegError(ctx context.Context, tradeId int64, leg models.TradeLeg) error {
	tradeInfo, err := s.trades.GetTrade(ctx, tradeId)

	if err != nil {
		return err
	}

	if !tradeInfo.ClearLegError(leg) {
		return staticerr.ErrorSettlementAborted
	}

	if err = s.trades.UpdateTrade(ctx, *tradeInfo); err != nil {
		return err
	}

	s.auditLog.Append(ctx, uuid.NewString(), "trade", strconv.FormatInt(tradeId, 10), "settlement_error_cleared", leg.String())
	return nil
}

// Run drives periodic batches until the context is canceled.
func (s *SettlementService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Settlement.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			settled, err := s.RunSettlementBatch(ctx)
			if err != nil {
				logrus.Warningln("Settlement batch failed: ", err.Error())
				continue
			}
			logrus.WithField("settled", settled).Infoln("Settlement batch finished")
		}
	}
}
