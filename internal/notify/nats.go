// Package notify forwards session lifecycle events to external consumers.
package notify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/drakleaf/rpc-hub/internal/presence"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Connect dials NATS with unlimited reconnects. Publishes made while disconnected are
// buffered by the client.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("rpc-hub"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				zap.S().Warnw("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			zap.S().Infow("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes each event as JSON on <prefix>.<type>.<user id>.
type NATSPublisher struct {
	conn   publisher
	prefix string
}

func NewNATSPublisher(conn publisher, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

func (p *NATSPublisher) Subject(event presence.Event) string {
	return p.prefix + "." + string(event.Type) + "." + strconv.FormatInt(event.UserID, 10)
}

func (p *NATSPublisher) Notify(event presence.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		zap.S().Errorw("failed to encode presence event", "error", err)
		return
	}

	if err := p.conn.Publish(p.Subject(event), data); err != nil {
		zap.S().Warnw("failed to publish presence event",
			"subject", p.Subject(event),
			"error", err,
		)
	}
}
