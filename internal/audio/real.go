package audio

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// RealPlayer publishes commands to the sound machine's MQTT broker.
type RealPlayer struct {
	client paho.Client
	log    *zap.SugaredLogger
}

// NewRealPlayer creates a player for the given broker. The connection is
// established in the background and retried forever, so the controller comes
// up even when the sound machine is down; commands issued while disconnected
// return errors.
func NewRealPlayer(broker string, log *zap.SugaredLogger) *RealPlayer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("escape-controller").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			log.Infow("audio broker connected", "broker", broker)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnw("audio broker connection lost", "error", err)
		})

	client := paho.NewClient(opts)
	client.Connect()

	return &RealPlayer{client: client, log: log}
}

// publish sends one command. QoS 0, not retained: a cue that cannot be
// delivered now is worthless later.
func (p *RealPlayer) publish(topic string, cmd Command) error {
	payload, err := FormatCommand(cmd)
	if err != nil {
		return fmt.Errorf("format command: %w", err)
	}

	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	return nil
}

// StartBackground starts the background track from the beginning.
func (p *RealPlayer) StartBackground(file string) error {
	return p.publish(TopicBackground, Command{Cmd: CmdStart, File: file})
}

// SwitchBackground crossfades the background to another track.
func (p *RealPlayer) SwitchBackground(file string) error {
	return p.publish(TopicBackground, Command{Cmd: CmdSwitch, File: file})
}

// StopBackground stops the background track.
func (p *RealPlayer) StopBackground() error {
	return p.publish(TopicBackground, Command{Cmd: CmdStop})
}

// PlayHint plays a one-shot hint over the background.
func (p *RealPlayer) PlayHint(file string) error {
	return p.publish(TopicHint, Command{Cmd: CmdPlay, File: file})
}

// SilenceAll stops everything immediately.
func (p *RealPlayer) SilenceAll() error {
	return p.publish(TopicPanic, Command{})
}

// IsConnected reports whether the broker link is up.
func (p *RealPlayer) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPlayer) Close() error {
	p.client.Disconnect(250)
	return nil
}
