package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hunthawk-systems/hunthawk/internal/config"
	"github.com/hunthawk-systems/hunthawk/internal/logging"
)

// NATSPublisher emits events over a plain NATS connection. Publish failures
// are logged and swallowed; the engine never blocks on the bus.
type NATSPublisher struct {
	conn *nats.Conn
	log  *logging.Logger
}

func NewNATSPublisher(cfg config.NATSConfig, log *logging.Logger) (*NATSPublisher, error) {
	reconnectWait := cfg.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	opts := []nats.Option{
		nats.Name("hunthawk-engine"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.Timeout(5 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.ErrorContext(context.Background(), "nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.InfoContext(context.Background(), "nats reconnected")
		}),
	}
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn, log: log}, nil
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to marshal event", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.ErrorContext(ctx, "failed to publish event", "subject", subject, "error", err)
	}
}

func (p *NATSPublisher) CampaignStarted(ctx context.Context, ev CampaignEvent) {
	p.publish(ctx, SubjectCampaignStarted, ev)
}

func (p *NATSPublisher) CampaignCompleted(ctx context.Context, ev CampaignEvent) {
	p.publish(ctx, SubjectCampaignCompleted, ev)
}

func (p *NATSPublisher) CampaignFailed(ctx context.Context, ev CampaignEvent) {
	p.publish(ctx, SubjectCampaignFailed, ev)
}

func (p *NATSPublisher) AnomalyDetected(ctx context.Context, ev AnomalyEvent) {
	p.publish(ctx, SubjectAnomalyDetected, ev)
}

func (p *NATSPublisher) GuardBreach(ctx context.Context, ev GuardEvent) {
	p.publish(ctx, SubjectGuardBreach, ev)
}

func (p *NATSPublisher) QueryError(ctx context.Context, ev QueryErrorEvent) {
	p.publish(ctx, SubjectQueryError, ev)
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
