package events

import (
	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"

	"github.com/rustyeddy/scalper/engine"
)

const (
	TopicTradeOpened   = "trade:opened"
	TopicTradeClosed   = "trade:closed"
	TopicTradeRejected = "trade:rejected"
)

// Rejection is published on TopicTradeRejected.
type Rejection struct {
	Setup     engine.TradeSetup
	Admission engine.Admission
}

// Bus fans engine trade events out to subscribers. Handlers run
// asynchronously so a slow subscriber never holds up the engine.
type Bus struct {
	bus EventBus.Bus
}

var _ engine.Listener = (*Bus)(nil)

func New() *Bus {
	return &Bus{bus: EventBus.New()}
}

// Subscribe registers fn for topic. fn must take the topic's payload type:
// engine.ActiveTrade, engine.ClosedTrade or Rejection.
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	if err := b.bus.SubscribeAsync(topic, fn, false); err != nil {
		return err
	}
	log.Debugf("Subscribed to topic %s", topic)
	return nil
}

func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

// Wait blocks until every in-flight handler has returned.
func (b *Bus) Wait() {
	b.bus.WaitAsync()
}

func (b *Bus) OnTradeOpened(t engine.ActiveTrade) {
	b.bus.Publish(TopicTradeOpened, t)
}

func (b *Bus) OnTradeClosed(t engine.ClosedTrade) {
	b.bus.Publish(TopicTradeClosed, t)
}

func (b *Bus) OnRejected(s engine.TradeSetup, a engine.Admission) {
	b.bus.Publish(TopicTradeRejected, Rejection{Setup: s, Admission: a})
}

// LogTrades subscribes a logger that writes one line per trade event.
func LogTrades(b *Bus, logger log.FieldLogger) error {
	if err := b.Subscribe(TopicTradeOpened, func(t engine.ActiveTrade) {
		logger.WithFields(log.Fields{
			"trade_id":   t.ID,
			"instrument": t.Instrument,
			"direction":  t.Direction.String(),
			"units":      t.Units,
		}).Info("opened")
	}); err != nil {
		return err
	}
	if err := b.Subscribe(TopicTradeClosed, func(t engine.ClosedTrade) {
		logger.WithFields(log.Fields{
			"trade_id": t.ID,
			"reason":   t.Reason,
			"pnl":      t.PnL,
		}).Info("closed")
	}); err != nil {
		return err
	}
	return b.Subscribe(TopicTradeRejected, func(r Rejection) {
		logger.WithFields(log.Fields{
			"instrument": r.Setup.Instrument,
			"reason":     r.Admission.Reason,
		}).Info("rejected")
	})
}
