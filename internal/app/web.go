package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_computer/internal/pipeline"
)

// wsPushInterval is how often /ws/state checks for a new state.
const wsPushInterval = 100 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // LAN instrument, no browser origin to trust
	},
}

// WebServer exposes the latest state and health over HTTP. It only reads
// from the pipeline context.
type WebServer struct {
	c   *pipeline.Context
	log *log.Entry
}

func NewWebServer(c *pipeline.Context) *WebServer {
	return &WebServer{c: c, log: c.Log.WithField("component", "web")}
}

// Handler returns the HTTP routes.
func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("/ws/state", s.handleStateWS)
	return mux
}

// Run serves on addr until ctx is done.
func (s *WebServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Infof("web server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *WebServer) handleState(w http.ResponseWriter, r *http.Request) {
	st, ok := s.c.Latest.Load()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, st)
}

func (s *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, pipeline.HealthReport{
		Time:       time.Now(),
		Session:    s.c.Session.String(),
		Components: s.c.Health.Snapshots(),
		Queues:     s.c.Queues(),
	})
}

func (s *WebServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	out, err := s.c.Config.YAML()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(out)
}

func (s *WebServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("json encode error")
	}
}

// handleStateWS pushes every new state to the client until it goes away.
func (s *WebServer) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade error")
		return
	}
	defer conn.Close()

	// Reader goroutine only notices the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.WithError(err).Debug("websocket closed")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPushInterval)
	defer ticker.Stop()
	var last time.Time
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			st, ok := s.c.Latest.Load()
			if !ok || !st.Timestamp.After(last) {
				continue
			}
			last = st.Timestamp
			conn.SetWriteDeadline(time.Now().Add(time.Second))
			if err := conn.WriteJSON(st); err != nil {
				s.log.WithError(err).Debug("websocket write error")
				return
			}
		}
	}
}
