package ingest

import (
	"context"
	"net"
	"sync"

	"codeberg.org/mutker/sensorsim/internal/errors"
	"codeberg.org/mutker/sensorsim/internal/logger"
	"codeberg.org/mutker/sensorsim/internal/sensor"
	"github.com/eclipse/paho.golang/paho"
)

const keepAlive = 30

// RemotePublisher publishes batches to a broker over TCP. It implements
// telemetry.Writer for devices running outside the broker process.
type RemotePublisher struct {
	client *paho.Client
	prefix string
	log    logger.Logger

	mu     sync.Mutex
	closed bool
}

// Dial connects to the broker at address as clientID.
func Dial(ctx context.Context, address, clientID, prefix string, log logger.Logger) (*RemotePublisher, error) {
	errFactory := errors.New()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errFactory.Wrap(ErrPublishFailed, err)
	}

	client := paho.NewClient(paho.ClientConfig{
		ClientID: clientID,
		Conn:     conn,
	})

	ack, err := client.Connect(ctx, &paho.Connect{
		ClientID:   clientID,
		KeepAlive:  keepAlive,
		CleanStart: true,
	})
	if err != nil {
		conn.Close()
		return nil, errFactory.Wrap(ErrPublishFailed, err)
	}
	if ack.ReasonCode != 0 {
		conn.Close()
		return nil, errFactory.WithData(ErrPublishFailed, ack.ReasonCode)
	}

	log.Debug().Str("address", address).Str("client_id", clientID).Msg("Connected to MQTT broker")

	return &RemotePublisher{client: client, prefix: prefix, log: log}, nil
}

// Insert publishes the batch with QoS 1 and waits for the broker's ack.
func (p *RemotePublisher) Insert(ctx context.Context, batch []sensor.Reading) error {
	if len(batch) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New().WithMessage(ErrPublishFailed, "publisher closed")
	}

	payload, err := EncodeBatch(batch)
	if err != nil {
		return err
	}

	if _, err := p.client.Publish(ctx, &paho.Publish{
		QoS:     1,
		Topic:   Topic(p.prefix, batch[0].DeviceID),
		Payload: payload,
	}); err != nil {
		return errors.New().Wrap(ErrPublishFailed, err)
	}
	return nil
}

func (p *RemotePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.client.Disconnect(&paho.Disconnect{ReasonCode: 0}); err != nil {
		return errors.New().Wrap(ErrPublishFailed, err)
	}
	return nil
}
