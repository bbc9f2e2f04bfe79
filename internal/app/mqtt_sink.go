package app

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_computer/internal/config"
	"github.com/relabs-tech/motion_computer/internal/gps"
	"github.com/relabs-tech/motion_computer/internal/motion"
	"github.com/relabs-tech/motion_computer/internal/pipeline"
)

// StateMessage is the payload published on the state topic.
type StateMessage struct {
	Session   string       `json:"session"`
	LatencyMS float64      `json:"latency_ms"`
	State     motion.State `json:"state"`
}

// publisher is the part of mqtt.Client the sink needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes fused states, fixes and health reports. Publishing never
// waits for the broker; failures are logged when the token completes.
type MQTTSink struct {
	client  publisher
	cfg     config.MQTTConfig
	session string
	log     *log.Entry

	lastFix time.Time
}

// ConnectMQTT connects to the broker in cfg.
func ConnectMQTT(cfg config.MQTTConfig, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	return client, nil
}

// NewMQTTSink publishes through client.
func NewMQTTSink(client publisher, cfg config.MQTTConfig, session string, entry *log.Entry) *MQTTSink {
	return &MQTTSink{
		client:  client,
		cfg:     cfg,
		session: session,
		log:     entry.WithField("sink", "mqtt"),
	}
}

func (s *MQTTSink) PublishState(st motion.State, latency time.Duration) {
	s.publish(s.cfg.TopicState, false, StateMessage{
		Session:   s.session,
		LatencyMS: float64(latency) / float64(time.Millisecond),
		State:     st,
	})
	// Each fix once, retained so late subscribers get a position.
	if st.GPSValid && st.FixTime.After(s.lastFix) {
		s.lastFix = st.FixTime
		s.publish(s.cfg.TopicFix, true, gps.Fix{
			Timestamp:  st.FixTime,
			Valid:      true,
			Time:       st.GPSTime,
			Latitude:   st.Latitude,
			Longitude:  st.Longitude,
			SpeedKnots: st.SpeedKnots,
			HeadingDeg: st.HeadingDeg,
			Satellites: st.Satellites,
		})
	}
}

func (s *MQTTSink) PublishHealth(rep pipeline.HealthReport) {
	s.publish(s.cfg.TopicHealth, true, rep)
}

func (s *MQTTSink) publish(topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.log.WithError(err).Errorf("marshal for %s", topic)
		return
	}
	token := s.client.Publish(topic, 0, retained, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			s.log.WithError(err).WithField("topic", topic).Warn("publish failed")
		}
	}()
}
