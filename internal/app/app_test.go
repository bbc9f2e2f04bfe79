package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_computer/internal/config"
	"github.com/relabs-tech/motion_computer/internal/gps"
	"github.com/relabs-tech/motion_computer/internal/health"
	"github.com/relabs-tech/motion_computer/internal/motion"
	"github.com/relabs-tech/motion_computer/internal/pipeline"
	"github.com/relabs-tech/motion_computer/internal/queue"
)

func newTestContext(t *testing.T) *pipeline.Context {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	rt, err := config.NewRuntime(logger, cfg.Log)
	require.NoError(t, err)
	c, err := pipeline.NewContext(cfg, rt)
	require.NoError(t, err)
	return c
}

func TestReplaySourcePacesAndLoops(t *testing.T) {
	now := time.Unix(0, 0)
	r := NewReplaySource([]byte("0123456789"), 100) // 10 bytes/s
	r.now = func() time.Time { return now }
	r.start = now

	buf := make([]byte, 64)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	now = now.Add(500 * time.Millisecond)
	n, _ = r.Read(buf)
	assert.Equal(t, "01234", string(buf[:n]))

	now = now.Add(time.Second)
	n, _ = r.Read(buf)
	assert.Equal(t, "5678901234", string(buf[:n]))

	// Short buffers get the rest on the next call.
	now = now.Add(400 * time.Millisecond)
	n, _ = r.Read(buf[:3])
	assert.Equal(t, "567", string(buf[:n]))
	n, _ = r.Read(buf)
	assert.Equal(t, "8", string(buf[:n]))

	require.NoError(t, r.Reset())
	now = now.Add(200 * time.Millisecond)
	n, _ = r.Read(buf)
	assert.Equal(t, "01", string(buf[:n]))
}

func TestReplaySourceFeedsDecoder(t *testing.T) {
	frame := gps.EncodeFrame(gps.UBXClassNAV, gps.UBXIDNavPVT, make([]byte, gps.NavPVTLength))
	now := time.Unix(0, 0)
	r := NewReplaySource(frame, 115200)
	r.now = func() time.Time { return now }
	r.start = now
	now = now.Add(time.Second)

	buf := make([]byte, 512)
	n, err := r.Read(buf)
	require.NoError(t, err)
	recs := gps.DecodeAll(gps.NewUBXDecoder(0), buf[:n], nil)
	assert.Equal(t, n/len(frame), recs)
	assert.Positive(t, recs)
}

type doneToken struct{ err error }

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic, retained, payload.([]byte)})
	return doneToken{err: f.err}
}

func (f *fakePublisher) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.msgs {
		out = append(out, m.topic)
	}
	return out
}

func TestMQTTSinkPublishesEachFixOnce(t *testing.T) {
	cfg := config.MQTTConfig{TopicState: "s", TopicFix: "f", TopicHealth: "h"}
	logger, _ := test.NewNullLogger()
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub, cfg, "session-1", logger.WithField("t", "x"))

	fixTime := time.Unix(100, 0)
	st := motion.State{GPSValid: true, Latitude: 48.1, FixTime: fixTime}
	sink.PublishState(st, 12*time.Millisecond)
	sink.PublishState(st, 12*time.Millisecond)
	st.FixTime = fixTime.Add(time.Second)
	sink.PublishState(st, 12*time.Millisecond)
	sink.PublishState(motion.State{}, 0)
	sink.PublishHealth(pipeline.HealthReport{Session: "session-1"})

	assert.Equal(t, []string{"s", "f", "s", "s", "f", "s", "h"}, pub.topics())

	var m StateMessage
	require.NoError(t, json.Unmarshal(pub.msgs[0].payload, &m))
	assert.Equal(t, "session-1", m.Session)
	assert.InDelta(t, 12.0, m.LatencyMS, 1e-9)
	assert.Equal(t, 48.1, m.State.Latitude)
	assert.False(t, pub.msgs[0].retained)
	assert.True(t, pub.msgs[1].retained)

	var f gps.Fix
	require.NoError(t, json.Unmarshal(pub.msgs[1].payload, &f))
	assert.True(t, f.Valid)
	assert.Equal(t, 48.1, f.Latitude)
}

func TestFormatMessages(t *testing.T) {
	payload, err := json.Marshal(StateMessage{
		LatencyMS: 3.5,
		State: motion.State{
			Pose:       motion.Pose{Roll: 1.5, Pitch: -2},
			TotalAccel: 1,
			GPSValid:   true,
			Latitude:   48.1173,
			Longitude:  -11.5,
			Satellites: 9,
		},
	})
	require.NoError(t, err)
	line, err := formatStateMessage(payload)
	require.NoError(t, err)
	assert.Contains(t, line, "ROLL=  1.50")
	assert.Contains(t, line, "pos=48.117300,-11.500000")
	assert.Contains(t, line, "sats=9")

	payload, err = json.Marshal(pipeline.HealthReport{
		Time:       time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		Components: []health.Snapshot{{Name: "imu", Total: 12345, SuccessRate: 99, Drops: 2}},
		Queues:     []pipeline.QueueStatus{{Name: "fused", Len: 3, Cap: 128, Stats: queue.Stats{}}},
	})
	require.NoError(t, err)
	line, err = formatHealthMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, "[HEALTH] 12:00:00  imu=99%/12,345(-2)  [fused 3/128]", line)

	_, err = formatStateMessage([]byte("{"))
	assert.Error(t, err)
}

func TestRenderState(t *testing.T) {
	lit := func(pix []byte) int {
		n := 0
		for _, b := range pix {
			for ; b != 0; b &= b - 1 {
				n++
			}
		}
		return n
	}

	waiting := renderState(motion.State{}, false)
	assert.Equal(t, displayWidth*displayHeight/8, len(waiting.Pix))
	assert.Positive(t, lit(waiting.Pix))

	st := motion.State{GPSValid: true, Latitude: 48.1, Longitude: -11.5, SpeedKnots: 3}
	withFix := renderState(st, true)
	st.GPSValid = false
	noFix := renderState(st, true)
	assert.NotEqual(t, withFix.Pix, noFix.Pix)
	assert.NotEqual(t, waiting.Pix, noFix.Pix)

	assert.Equal(t, "48.1000N", hemisphere(48.1, "N", "S"))
	assert.Equal(t, "11.5000W", hemisphere(-11.5, "E", "W"))
}

func TestWebServer(t *testing.T) {
	c := newTestContext(t)
	srv := httptest.NewServer(NewWebServer(c).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	c.Latest.Store(motion.State{Timestamp: time.Now(), Latitude: 48.1})
	resp, err = http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	var st motion.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	assert.Equal(t, 48.1, st.Latitude)

	resp, err = http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	var rep pipeline.HealthReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	resp.Body.Close()
	assert.Len(t, rep.Components, 6)
	assert.Len(t, rep.Queues, 4)
	assert.Equal(t, c.Session.String(), rep.Session)

	resp, err = http.Get(srv.URL + "/api/config")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "fusion_period")
}

func TestWebSocketStreamsState(t *testing.T) {
	c := newTestContext(t)
	srv := httptest.NewServer(NewWebServer(c).Handler())
	defer srv.Close()

	c.Latest.Store(motion.State{Timestamp: time.Now(), Longitude: -11.5})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/state"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var st motion.State
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, -11.5, st.Longitude)
}

type fakeCloser struct {
	name  string
	order *[]string
	err   error
}

func (f fakeCloser) Close() error {
	*f.order = append(*f.order, f.name)
	return f.err
}

func TestCloserListReverseOrder(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	l := closerList{fakeCloser{"a", &order, nil}, fakeCloser{"b", &order, boom}}
	err := l.Close()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"b", "a"}, order)
}
