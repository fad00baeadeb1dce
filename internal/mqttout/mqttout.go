// Package mqttout streams the per-device LED colors of every rendered frame
// to an MQTT broker, one message per device on <topic>/<type>/<index>.
package mqttout

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis-layout/internal/config"
	"github.com/coreman2200/arcaluminis-layout/internal/layout"
	"github.com/coreman2200/arcaluminis-layout/internal/render"
)

const publishTimeout = 2 * time.Second

// Client is the slice of mqtt.Client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Connect dials the broker described by c.
func Connect(c config.MQTT, log zerolog.Logger) (mqtt.Client, error) {
	options := mqtt.NewClientOptions().
		AddBroker(c.URL).
		SetClientID(c.ClientID).
		SetUsername(c.Username).
		SetPassword(c.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Info().Str("broker", c.URL).Msg("mqtt connected")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Msg("mqtt connection lost")
		})
	client := mqtt.NewClient(options)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", c.URL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", c.URL, err)
	}
	return client, nil
}

type message struct {
	topic   string
	payload []byte
}

// Publisher forwards frames from the render loop to the broker on its own
// goroutine. When the broker falls behind, whole frames are dropped.
type Publisher struct {
	client Client
	topic  string
	qos    byte
	log    zerolog.Logger
	queue  chan []message
}

func NewPublisher(client Client, topic string, log zerolog.Logger) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
		log:    log,
		queue:  make(chan []message, 1),
	}
}

// Attach subscribes p to reg's rendered frames.
func (p *Publisher) Attach(reg *layout.Registry) (cancel func()) {
	return reg.OnFrameRendered(func(*render.Canvas) {
		p.Enqueue(reg.AllLayouts())
	})
}

// Enqueue snapshots the colors of devices. It never blocks.
func (p *Publisher) Enqueue(devices []*layout.DeviceLayout) {
	msgs := make([]message, 0, len(devices))
	for _, d := range devices {
		colors := d.Colors()
		rgb := make([]byte, 0, len(colors)*3)
		for _, c := range colors {
			rgb = append(rgb, c.R, c.G, c.B)
		}
		msgs = append(msgs, message{
			topic:   fmt.Sprintf("%s/%d/%d", p.topic, d.Key.Type, d.Key.Index),
			payload: rgb,
		})
	}
	select {
	case p.queue <- msgs:
	default:
		p.log.Debug().Msg("mqtt busy, frame dropped")
	}
}

// Run publishes queued frames until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msgs := <-p.queue:
			for _, m := range msgs {
				token := p.client.Publish(m.topic, p.qos, false, m.payload)
				if !token.WaitTimeout(publishTimeout) {
					p.log.Warn().Str("topic", m.topic).Msg("mqtt publish timeout")
					continue
				}
				if err := token.Error(); err != nil {
					p.log.Warn().Err(err).Str("topic", m.topic).Msg("mqtt publish")
				}
			}
		}
	}
}
