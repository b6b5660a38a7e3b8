package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"thekua/internal/domain/model"
	"thekua/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// 注文イベントをtopic exchangeに流す。ルーティングキーはイベント種別。
type Publisher struct {
	conn     *amqp.Connection
	exchange string
	log      *zap.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

func Dial(url string, exchange string, log *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	p := &Publisher{conn: conn, exchange: exchange, log: logger.OrNop(log).Named("mq")}
	if _, err := p.channel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

// チャネルが閉じていたら開き直す
func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	p.ch = ch
	return ch, nil
}

func (p *Publisher) Publish(ctx context.Context, ev model.OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	ch, err := p.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, p.exchange, string(ev.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.OrderID + ":" + string(ev.Type),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	return p.conn.Close()
}

// RABBITMQ_URL 未設定のとき。ログに出すだけ。
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: logger.OrNop(log).Named("events")}
}

func (p *LogPublisher) Publish(ctx context.Context, ev model.OrderEvent) error {
	p.log.Info("order event",
		zap.String("type", string(ev.Type)),
		zap.String("order_id", ev.OrderID),
		zap.String("merchant_transaction_id", ev.MerchantTransactionID),
		zap.String("payment_status", string(ev.PaymentStatus)),
	)
	return nil
}
