// Package mqttingest feeds externally published sensor observations into the
// evaluator. Machines on the factory network publish parameter sets to
// <prefix>/<machine>; every message goes through the same evaluate-persist-
// publish path as the simulated loops, including critical trips.
package mqttingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"plantwatch/internal/logger"
	"plantwatch/internal/metrics"
	"plantwatch/internal/models"
	"plantwatch/internal/monitor"
	"plantwatch/internal/risk"
)

// Observer receives decoded observations. Satisfied by *monitor.Manager.
type Observer interface {
	Observe(ctx context.Context, machine string, params risk.ParameterSet) (*models.Reading, error)
}

// Config holds the broker connection parameters.
type Config struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
}

// message is the expected payload shape.
type message struct {
	Values    map[string]float64 `json:"values"`
	Timestamp time.Time          `json:"timestamp,omitempty"`
}

// Ingestor subscribes to the machine topics and forwards observations.
type Ingestor struct {
	cfg      Config
	observer Observer
	client   mqtt.Client
	log      zerolog.Logger
}

// New builds an Ingestor. Call Start to connect.
func New(cfg Config, observer Observer) *Ingestor {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "plantwatch"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("plantwatch-%d", time.Now().Unix())
	}
	return &Ingestor{
		cfg:      cfg,
		observer: observer,
		log:      logger.WithComponent("mqtt"),
	}
}

// Start connects to the broker and subscribes. The subscription is installed
// from the OnConnect hook so it survives reconnects.
func (i *Ingestor) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(i.cfg.BrokerURL)
	opts.SetClientID(i.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(client mqtt.Client) {
		topic := i.cfg.TopicPrefix + "/+"
		token := client.Subscribe(topic, 1, i.handleMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			i.log.Error().Err(err).Str("topic", topic).Msg("subscribe failed")
			return
		}
		i.log.Info().Str("topic", topic).Msg("subscribed")
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		i.log.Warn().Err(err).Msg("broker connection lost")
	}

	i.client = mqtt.NewClient(opts)
	if token := i.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	i.log.Info().Str("broker", i.cfg.BrokerURL).Msg("connected")
	return nil
}

// Stop disconnects from the broker.
func (i *Ingestor) Stop() {
	if i.client != nil && i.client.IsConnected() {
		i.client.Disconnect(250)
	}
	i.log.Info().Msg("disconnected")
}

func (i *Ingestor) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	machine := machineFromTopic(msg.Topic())
	log := i.log.With().Str("machine", machine).Str("topic", msg.Topic()).Logger()

	var m message
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		metrics.MQTTMessages.WithLabelValues(machine, "rejected").Inc()
		log.Warn().Err(err).Msg("undecodable payload dropped")
		return
	}
	if len(m.Values) == 0 {
		metrics.MQTTMessages.WithLabelValues(machine, "rejected").Inc()
		log.Warn().Msg("payload has no sensor values")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	params := risk.ParameterSet{Values: m.Values, Timestamp: m.Timestamp}
	reading, err := i.observer.Observe(ctx, machine, params)
	if err != nil {
		metrics.MQTTMessages.WithLabelValues(machine, "rejected").Inc()
		switch {
		case errors.Is(err, monitor.ErrUnknownMachine):
			log.Warn().Msg("observation for unknown machine dropped")
		case errors.Is(err, risk.ErrUnknownSensor):
			log.Warn().Err(err).Msg("observation with unknown sensor dropped")
		default:
			log.Error().Err(err).Msg("observation failed")
		}
		return
	}

	metrics.MQTTMessages.WithLabelValues(machine, "accepted").Inc()
	log.Debug().
		Str("status", string(reading.Status)).
		Float64("score", reading.Score).
		Msg("observation ingested")
}

// machineFromTopic extracts the machine name, the last topic segment.
func machineFromTopic(topic string) string {
	if idx := strings.LastIndexByte(topic, '/'); idx >= 0 {
		return topic[idx+1:]
	}
	return topic
}
