package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/gartstein/directory/internal/company/models"
)

var jsonMarshal = json.Marshal

type EventType string

const (
	CompanyCreated EventType = "company_created"
	CompanyUpdated EventType = "company_updated"
	CompanyDeleted EventType = "company_deleted"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "companies"

// HeaderEventType carries the event type so consumers can filter without
// decoding the payload.
const HeaderEventType = "event-type"

const (
	queueSize    = 1000
	writeTimeout = 10 * time.Second
)

// Event is the JSON payload of every message on the topic. Messages are
// keyed by company id.
type Event struct {
	Type       EventType       `json:"type"`
	Company    *models.Company `json:"company"`
	OccurredAt time.Time       `json:"occurredAt"`
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes company events from a background goroutine. Produce
// never blocks: events are dropped with a warning when the queue is full
// or the producer has been closed.
type Producer struct {
	writer KafkaWriter
	logger *zap.Logger
	now    func() time.Time

	mu     sync.RWMutex
	queue  chan Event
	closed bool
	done   chan struct{}
}

// NewProducer makes sure the topic exists and starts publishing.
func NewProducer(brokers []string, logger *zap.Logger, topic string) (*Producer, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	if err := ensureTopic(brokers[0], topic); err != nil {
		logger.Warn("failed to create topic (may already exist)", zap.String("topic", topic), zap.Error(err))
	}

	// Hash keeps every event of one company on the same partition.
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
	}, logger, queueSize), nil
}

func ensureTopic(broker, topic string) error {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	})
}

func newProducer(writer KafkaWriter, logger *zap.Logger, size int) *Producer {
	p := &Producer{
		writer: writer,
		logger: logger.Named("kafka_producer"),
		now:    time.Now,
		queue:  make(chan Event, size),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Producer) Produce(eventType EventType, company *models.Company) {
	ev := Event{Type: eventType, Company: company, OccurredAt: p.now().UTC()}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.drop("Kafka producer closed, dropping event", ev)
		return
	}
	select {
	case p.queue <- ev:
	default:
		p.drop("Kafka producer queue full, dropping event", ev)
	}
}

func (p *Producer) drop(msg string, ev Event) {
	p.logger.Warn(msg,
		zap.String("event_type", string(ev.Type)),
		zap.String("company_id", ev.Company.ID),
	)
}

// run publishes until the queue is closed and empty.
func (p *Producer) run() {
	defer close(p.done)
	for ev := range p.queue {
		p.publish(ev)
	}
}

func (p *Producer) publish(ev Event) {
	value, err := jsonMarshal(ev)
	if err != nil {
		p.logger.Error("Failed to serialize event",
			zap.Error(err),
			zap.String("company_id", ev.Company.ID),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	err = p.writer.WriteMessages(ctx, message(ev, value))
	if err != nil {
		p.logger.Error("Failed to produce event",
			zap.Error(err),
			zap.String("event_type", string(ev.Type)),
			zap.String("company_id", ev.Company.ID),
		)
	}
}

func message(ev Event, value []byte) kafka.Message {
	return kafka.Message{
		Key:     []byte(ev.Company.ID),
		Value:   value,
		Time:    ev.OccurredAt,
		Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte(ev.Type)}},
	}
}

// Close publishes what is still queued, then closes the writer. Later
// calls wait for the first one to finish.
func (p *Producer) Close() {
	p.mu.Lock()
	first := !p.closed
	if first {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	<-p.done
	if !first {
		return
	}
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}

// NopProducer discards every event. It is used when no brokers are
// configured.
type NopProducer struct{}

func (NopProducer) Produce(EventType, *models.Company) {}

func (NopProducer) Close() {}
