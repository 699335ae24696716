package producer

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedkafka "github.com/radieske/vrf-casino-platform-poc/internal/shared/kafka"
	"github.com/radieske/vrf-casino-platform-poc/pkg/contracts/events"
	"github.com/radieske/vrf-casino-platform-poc/pkg/contracts/topics"
)

// KafkaPublisher publica os eventos de ciclo de vida dos três componentes em
// tópicos dedicados. A publicação é best-effort: falha vira log, nunca erro
// do fluxo de negócio que a originou.
type KafkaPublisher struct {
	log     *zap.Logger
	writers map[string]*kafka.Writer
}

func NewKafkaPublisher(log *zap.Logger, brokers string) *KafkaPublisher {
	all := []string{
		topics.LedgerEntries,
		topics.RandomRequested,
		topics.RandomFulfilled,
		topics.DeliveryFailed,
		topics.BetCommitted,
		topics.BetSettled,
		topics.BetSlashed,
		topics.BetCancelled,
		topics.DrawCreated,
		topics.TicketsSold,
		topics.DrawRolledOver,
		topics.DrawFinalized,
		topics.DrawTimedOut,
		topics.RefundClaimed,
	}
	writers := make(map[string]*kafka.Writer, len(all))
	for _, t := range all {
		writers[t] = sharedkafka.NewWriter(brokers, t)
	}
	return &KafkaPublisher{log: log, writers: writers}
}

// Close fecha todos os writers.
func (p *KafkaPublisher) Close() {
	for _, w := range p.writers {
		_ = w.Close()
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := sharedkafka.WriteJSON(ctx, p.writers[topic], key, b); err != nil {
		p.log.Warn("kafka publish failed", zap.String("topic", topic), zap.Error(err))
		return err
	}
	return nil
}

// Ledger

func (p *KafkaPublisher) PublishLedgerEntry(ctx context.Context, e events.LedgerEntry) error {
	return p.publish(ctx, topics.LedgerEntries, e.Asset, e)
}

// Randomness

func (p *KafkaPublisher) PublishRandomRequested(ctx context.Context, e events.RandomRequested) error {
	return p.publish(ctx, topics.RandomRequested, e.RequestID, e)
}

func (p *KafkaPublisher) PublishRandomFulfilled(ctx context.Context, e events.RandomFulfilled) error {
	return p.publish(ctx, topics.RandomFulfilled, e.RequestID, e)
}

func (p *KafkaPublisher) PublishDeliveryFailed(ctx context.Context, e events.DeliveryFailed) error {
	return p.publish(ctx, topics.DeliveryFailed, e.RequestID, e)
}

// Dice

func (p *KafkaPublisher) PublishBetCommitted(ctx context.Context, e events.BetCommitted) error {
	return p.publish(ctx, topics.BetCommitted, e.BetID, e)
}

func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	return p.publish(ctx, topics.BetSettled, e.BetID, e)
}

func (p *KafkaPublisher) PublishBetSlashed(ctx context.Context, e events.BetSlashed) error {
	return p.publish(ctx, topics.BetSlashed, e.BetID, e)
}

func (p *KafkaPublisher) PublishBetCancelled(ctx context.Context, e events.BetCancelled) error {
	return p.publish(ctx, topics.BetCancelled, e.BetID, e)
}

// Lottery

func (p *KafkaPublisher) PublishDrawCreated(ctx context.Context, e events.DrawCreated) error {
	return p.publish(ctx, topics.DrawCreated, e.DrawID, e)
}

func (p *KafkaPublisher) PublishTicketsSold(ctx context.Context, e events.TicketsSold) error {
	return p.publish(ctx, topics.TicketsSold, e.DrawID, e)
}

func (p *KafkaPublisher) PublishDrawRolledOver(ctx context.Context, e events.DrawRolledOver) error {
	return p.publish(ctx, topics.DrawRolledOver, e.DrawID, e)
}

func (p *KafkaPublisher) PublishDrawFinalized(ctx context.Context, e events.DrawFinalized) error {
	return p.publish(ctx, topics.DrawFinalized, e.DrawID, e)
}

func (p *KafkaPublisher) PublishDrawTimedOut(ctx context.Context, e events.DrawTimedOut) error {
	return p.publish(ctx, topics.DrawTimedOut, e.DrawID, e)
}

func (p *KafkaPublisher) PublishRefundClaimed(ctx context.Context, e events.RefundClaimed) error {
	return p.publish(ctx, topics.RefundClaimed, e.DrawID, e)
}
