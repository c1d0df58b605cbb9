// Package ws hosts battles over websockets. Each connection runs one
// encounter on its own battle loop; the friendly side is played by the
// client and the enemy side by scripted controllers.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/louisbranch/skirmish/internal/battle/catalog"
	"github.com/louisbranch/skirmish/internal/battle/encounter"
	"github.com/louisbranch/skirmish/internal/battle/loop"
	"github.com/louisbranch/skirmish/internal/battle/storage"
	"github.com/louisbranch/skirmish/internal/platform/requestctx"
	"github.com/louisbranch/skirmish/internal/platform/timeouts"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	writeWait        = timeouts.WebSocketWrite
)

// Config wires the server to battle content and result storage.
type Config struct {
	Catalog    *catalog.Catalog
	Encounters map[string]*encounter.Script
	// Store receives finished results. Nil disables persistence.
	Store storage.ResultStore
	// FrameInterval paces the battle loop of each session.
	FrameInterval time.Duration
	// ThinkDelay is how long scripted squads wait before acting.
	ThinkDelay time.Duration
	Columns    int
	Rows       int
	Logger     *log.Logger
	Verbose    bool
	// CheckOrigin overrides the upgrader origin check.
	CheckOrigin func(r *http.Request) bool
}

// Server routes encounter sessions and result lookups.
type Server struct {
	cfg      Config
	log      *log.Logger
	upgrader websocket.Upgrader
	router   *mux.Router
}

// NewServer builds the server routes.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = loop.DefaultFrameInterval
	}
	s := &Server{
		cfg:    cfg,
		log:    logger,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: timeouts.WebSocketHandshake,
			CheckOrigin:      cfg.CheckOrigin,
		},
	}
	s.router.HandleFunc("/encounters", s.handleEncounters).Methods(http.MethodGet)
	s.router.HandleFunc("/encounters/{name}/ws", s.handleSession).Methods(http.MethodGet)
	s.router.HandleFunc("/results", s.handleResults).Methods(http.MethodGet)
	s.router.HandleFunc("/results/{id}", s.handleResult).Methods(http.MethodGet)
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleEncounters(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(s.cfg.Encounters))
	for name := range s.cfg.Encounters {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string][]string{"encounters": names})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	script, ok := s.cfg.Encounters[name]
	if !ok {
		http.Error(w, "unknown encounter", http.StatusNotFound)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("ws: upgrade %s: %v", name, err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	ctx := requestctx.WithSessionID(r.Context(), id)
	s.log.Printf("ws: session %s start encounter=%s from=%s", id, name, r.RemoteAddr)
	sess := newSession(s.cfg, s.log, conn, script)
	if err := sess.run(ctx); err != nil && !isClosed(err) {
		s.log.Printf("ws: session %s: %v", id, err)
	}
	s.log.Printf("ws: session %s end encounter=%s", id, name)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		http.Error(w, "result storage is disabled", http.StatusNotFound)
		return
	}
	record, err := s.cfg.Store.GetResult(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "result not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Printf("get result: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recordJSON(record))
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		writeJSON(w, http.StatusOK, map[string][]RecordView{"results": {}})
		return
	}
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}
	records, err := s.cfg.Store.ListResults(r.Context(), limit)
	if err != nil {
		s.log.Printf("list results: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	views := make([]RecordView, 0, len(records))
	for _, record := range records {
		views = append(views, recordJSON(record))
	}
	writeJSON(w, http.StatusOK, map[string][]RecordView{"results": views})
}

// RecordView is the JSON form of a stored result.
type RecordView struct {
	ID        string          `json:"id"`
	Encounter string          `json:"encounter"`
	Seed      int64           `json:"seed"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at"`
	Result    json.RawMessage `json:"result"`
}

func recordJSON(record storage.ResultRecord) RecordView {
	res, _ := json.Marshal(record.Result)
	return RecordView{
		ID:        record.ID,
		Encounter: record.Encounter,
		Seed:      record.Seed,
		StartedAt: record.StartedAt,
		EndedAt:   record.EndedAt,
		Result:    res,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func isClosed(err error) bool {
	return errors.Is(err, context.Canceled) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
