package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/mr1hm/go-shelter-alerts/internal/fanout"
	"github.com/mr1hm/go-shelter-alerts/internal/models"
)

const kindFanoutCompleted = "fanout.completed"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher mirrors alert events and fan-out summaries to a Kafka topic,
// keyed by alert id.
type KafkaPublisher struct {
	writer messageWriter
	logger *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		WriteTimeout: 10 * time.Second,
	}
	return newKafkaPublisher(w, logger)
}

func newKafkaPublisher(w messageWriter, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: logger.With("component", "kafka")}
}

// Run writes events from a subscription until the channel is closed.
func (p *KafkaPublisher) Run(ctx context.Context, events <-chan Event) {
	for e := range events {
		msg, err := alertMessage(e)
		if err == nil {
			err = p.writer.WriteMessages(ctx, msg)
		}
		if err != nil {
			p.logger.WarnContext(ctx, "failed to publish alert event", "kind", e.Kind, "alert_id", e.Alert.ID, "error", err)
		}
	}
}

func (p *KafkaPublisher) PublishFanout(ctx context.Context, res *fanout.Result) {
	msg, err := fanoutMessage(res, time.Now())
	if err == nil {
		err = p.writer.WriteMessages(ctx, msg)
	}
	if err != nil {
		p.logger.WarnContext(ctx, "failed to publish fanout summary", "alert_id", res.AlertID, "error", err)
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type alertPayload struct {
	ID         string    `json:"id"`
	HazardType string    `json:"hazard_type"`
	Severity   string    `json:"severity"`
	CenterLat  float64   `json:"center_lat"`
	CenterLon  float64   `json:"center_lon"`
	RadiusM    int       `json:"radius_m"`
	ValidUntil time.Time `json:"valid_until"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	Score      int       `json:"score"`
	Official   bool      `json:"official"`
}

type fanoutPayload struct {
	AlertID      string `json:"alert_id"`
	Candidates   int    `json:"candidates"`
	Affected     int    `json:"affected"`
	Sent         int    `json:"sent"`
	Failed       int    `json:"failed"`
	NoShelter    int    `json:"no_shelter"`
	NotAttempted int    `json:"not_attempted"`
	Partial      bool   `json:"partial"`
}

func toAlertPayload(a models.Alert) alertPayload {
	return alertPayload{
		ID:         a.ID,
		HazardType: string(a.HazardType),
		Severity:   string(a.Severity),
		CenterLat:  a.CenterLat,
		CenterLon:  a.CenterLon,
		RadiusM:    a.RadiusM,
		ValidUntil: a.ValidUntil.UTC(),
		Source:     a.Source,
		Status:     string(a.Status),
		Score:      a.Score,
		Official:   a.Official,
	}
}

func alertMessage(e Event) (kafkago.Message, error) {
	data, err := json.Marshal(toAlertPayload(e.Alert))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert event: %w", err)
	}
	return newMessage(e.Alert.ID, string(e.Kind), e.At, data), nil
}

func fanoutMessage(res *fanout.Result, at time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(fanoutPayload{
		AlertID:      res.AlertID,
		Candidates:   res.Candidates,
		Affected:     res.Affected(),
		Sent:         res.Sent(),
		Failed:       res.Failed(),
		NoShelter:    res.NoShelter(),
		NotAttempted: res.NotAttempted(),
		Partial:      res.Partial,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize fanout summary: %w", err)
	}
	return newMessage(res.AlertID, kindFanoutCompleted, at, data), nil
}

func newMessage(key, kind string, at time.Time, value []byte) kafkago.Message {
	return kafkago.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(kind)},
			{Key: "occurred_at", Value: []byte(at.UTC().Format(time.RFC3339))},
		},
	}
}
