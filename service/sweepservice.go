package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"exchange-core-service/audit"
	"exchange-core-service/config"
	"exchange-core-service/models"
)

// SweepService closes orders whose time in force elapsed. Matching already
// refuses expired resting orders, the sweep just makes the state visible.
type SweepService struct {
	orders   iOrderStorage
	notifier Notifier
	auditLog audit.Sink
	cfg      config.Config
}

func NewSweepService(orders iOrderStorage, notifier Notifier, auditLog audit.Sink, cfg config.Config) *SweepService {
	return &SweepService{orders: orders, notifier: notifier, auditLog: auditLog, cfg: cfg}
}

// ExpireOrders cancels every open order past its expiry and returns how many
// it closed.
func (s *SweepService) ExpireOrders(ctx context.Context) (int, error) {
	now := time.Now().UTC().UnixMilli()

	expired, err := s.orders.ExpiredOpenOrders(ctx, now)

	if err != nil {
		return 0, err
	}

	closed := 0

	for _, orderInfo := range expired {
		orderInfo.Open = false
		orderInfo.Canceled = true

		if err = s.orders.UpdateOrder(ctx, orderInfo); err != nil {
			logrus.WithField("orderId", orderInfo.OrderId).Errorln("Expiry update failed: ", err.Error())
			continue
		}

		closed++
		s.auditLog.Append(ctx, uuid.NewString(), "order", orderInfo.OrderId, "expired", "")
		s.notifier.PublishOrder(ctx, models.OrderEvent{
			Type:       "order_expired",
			OrderId:    orderInfo.OrderId,
			Cryptopair: orderInfo.Cryptopair,
			Side:       orderInfo.Side,
			LimitPrice: orderInfo.LimitPrice,
			Volume:     orderInfo.Volume,
			Open:       false,
			Canceled:   true,
			Timestamp:  now,
		})
	}

	return closed, nil
}

// Run drives periodic sweeps until the context is canceled.
func (s *SweepService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			closed, err := s.ExpireOrders(ctx)
			if err != nil {
				logrus.Warningln("Expiry sweep failed: ", err.Error())
				continue
			}
			if closed > 0 {
				logrus.WithField("closed", closed).Infoln("Expired orders swept")
			}
		}
	}
}
