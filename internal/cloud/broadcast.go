package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

// SimulatedReach is the audience size reported by the simulated network.
const SimulatedReach = 142

// BroadcastResult is the community response to a shared item.
type BroadcastResult struct {
	Sightings int `json:"sightings"`
	Reach     int `json:"reach"`
}

// Broadcaster shares an evidence item with the community network.
type Broadcaster interface {
	Broadcast(ctx context.Context, item evidence.Item) (BroadcastResult, error)
}

// SimulatedBroadcaster waits and reports between one and five sightings.
type SimulatedBroadcaster struct {
	latency time.Duration
	roll    func() int
}

func NewSimulatedBroadcaster(latency time.Duration) *SimulatedBroadcaster {
	return &SimulatedBroadcaster{
		latency: latency,
		roll:    func() int { return rand.IntN(5) + 1 },
	}
}

func (b *SimulatedBroadcaster) Broadcast(ctx context.Context, item evidence.Item) (BroadcastResult, error) {
	if err := sleep(ctx, b.latency); err != nil {
		return BroadcastResult{}, err
	}
	return BroadcastResult{Sightings: b.roll(), Reach: SimulatedReach}, nil
}

// Requester is the request-reply subset of *nats.Conn.
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

type broadcastRequest struct {
	ID          string   `json:"id"`
	ThreatLevel string   `json:"threatLevel,omitempty"`
	TriggerType string   `json:"triggerType"`
	Timestamp   int64    `json:"timestamp"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Persons     []string `json:"persons,omitempty"`
	Vehicles    []string `json:"vehicles,omitempty"`
}

// NATSBroadcaster publishes the item on a subject and waits for the
// community service to reply with sightings. When the request fails and a
// fallback is set, the fallback answers instead.
type NATSBroadcaster struct {
	conn     Requester
	subject  string
	timeout  time.Duration
	fallback Broadcaster
	logger   *logging.Logger
}

type NATSBroadcasterConfig struct {
	Subject  string
	Timeout  time.Duration
	Fallback Broadcaster
	Logger   *logging.Logger
}

func NewNATSBroadcaster(conn Requester, cfg NATSBroadcasterConfig) *NATSBroadcaster {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &NATSBroadcaster{
		conn:     conn,
		subject:  cfg.Subject,
		timeout:  cfg.Timeout,
		fallback: cfg.Fallback,
		logger:   cfg.Logger,
	}
}

func (b *NATSBroadcaster) Broadcast(ctx context.Context, item evidence.Item) (BroadcastResult, error) {
	res, err := b.request(ctx, item)
	if err == nil {
		return res, nil
	}
	if b.fallback == nil {
		return BroadcastResult{}, err
	}
	b.logger.Warn("community broadcast failed, using fallback", "evidence_id", item.ID, "error", err)
	return b.fallback.Broadcast(ctx, item)
}

func (b *NATSBroadcaster) request(ctx context.Context, item evidence.Item) (BroadcastResult, error) {
	req := broadcastRequest{
		ID:          item.ID,
		TriggerType: string(item.TriggerType),
		Timestamp:   item.Timestamp,
		Latitude:    item.Latitude,
		Longitude:   item.Longitude,
	}
	if item.Analysis != nil {
		req.ThreatLevel = string(item.Analysis.ThreatLevel)
		req.Persons = item.Analysis.Persons
		req.Vehicles = item.Analysis.Vehicles
	}
	data, err := json.Marshal(req)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("cloud: marshal broadcast: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	msg, err := b.conn.RequestWithContext(ctx, b.subject, data)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("cloud: nats request %s: %w", b.subject, err)
	}

	var res BroadcastResult
	if err := json.Unmarshal(msg.Data, &res); err != nil {
		return BroadcastResult{}, fmt.Errorf("cloud: decode broadcast reply: %w", err)
	}
	if res.Sightings < 0 {
		res.Sightings = 0
	}
	b.logger.Info("community broadcast acknowledged", "evidence_id", item.ID, "sightings", res.Sightings, "reach", res.Reach)
	return res, nil
}
