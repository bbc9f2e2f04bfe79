package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_computer/internal/config"
	"github.com/relabs-tech/motion_computer/internal/pipeline"
)

// RunConsoleMQTT prints the state and health topics to out until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg config.MQTTConfig, out io.Writer, entry *log.Entry) error {
	client, err := ConnectMQTT(cfg, cfg.ClientID+"-console")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	entry.Infof("console: connected to MQTT broker at %s", cfg.Broker)

	subs := map[string]func([]byte) (string, error){
		cfg.TopicState:  formatStateMessage,
		cfg.TopicHealth: formatHealthMessage,
	}
	for topic, format := range subs {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			line, err := format(msg.Payload())
			if err != nil {
				entry.WithError(err).Warnf("console: %s unmarshal error", msg.Topic())
				return
			}
			fmt.Fprintln(out, line)
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		entry.Infof("console: subscribed to %s", topic)
	}

	<-ctx.Done()
	entry.Info("console: shutting down")
	return nil
}

func formatStateMessage(payload []byte) (string, error) {
	var m StateMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", err
	}
	st := m.State
	line := fmt.Sprintf("[STATE] ROLL=%6.2f  PITCH=%6.2f  |a|=%5.2fg  lat=%5.1fms",
		st.Pose.Roll, st.Pose.Pitch, st.TotalAccel, m.LatencyMS)
	if st.GPSValid {
		line += fmt.Sprintf("  pos=%.6f,%.6f speed=%.1fkn sats=%d", st.Latitude, st.Longitude, st.SpeedKnots, st.Satellites)
	} else {
		line += "  no fix"
	}
	return line, nil
}

func formatHealthMessage(payload []byte) (string, error) {
	var rep pipeline.HealthReport
	if err := json.Unmarshal(payload, &rep); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[HEALTH] %s", rep.Time.Format("15:04:05"))
	for _, c := range rep.Components {
		fmt.Fprintf(&b, "  %s=%d%%/%s", c.Name, c.SuccessRate, humanize.Comma(int64(c.Total)))
		if c.Drops > 0 {
			fmt.Fprintf(&b, "(-%d)", c.Drops)
		}
	}
	for _, q := range rep.Queues {
		fmt.Fprintf(&b, "  [%s %d/%d]", q.Name, q.Len, q.Cap)
	}
	return b.String(), nil
}
