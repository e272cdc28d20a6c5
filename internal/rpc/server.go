package rpc

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/consolecowboy0/iracing-mcp-server/internal/history"
	"github.com/consolecowboy0/iracing-mcp-server/internal/race"
	"github.com/consolecowboy0/iracing-mcp-server/internal/session"
	"github.com/consolecowboy0/iracing-mcp-server/internal/telemetry"
)

type Server struct {
	registry  *session.Registry
	tools     *Tools
	source    telemetry.Source
	tracker   *race.Tracker
	passes    history.Log
	authToken string
}

func NewServer(registry *session.Registry, tools *Tools, source telemetry.Source, tracker *race.Tracker, passes history.Log, authToken string) *Server {
	return &Server{
		registry:  registry,
		tools:     tools,
		source:    source,
		tracker:   tracker,
		passes:    passes,
		authToken: authToken,
	}
}

// Router builds the HTTP surface: the WebSocket tool endpoint plus a small
// read-only API for dashboards and debugging.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWS)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/passes", s.handlePasses).Methods(http.MethodGet)
	api.HandleFunc("/sessions", s.handleSessions).Methods(http.MethodGet)
	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		// The protocol is tool-call RPC for non-browser agents; origin
		// enforcement happens via the auth token when configured.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[rpc] ws upgrade error: %v", err)
		return
	}

	c := newSessionConn(conn)
	log.Printf("[rpc] client connected: %s (session %s)", r.RemoteAddr, c.id)
	go s.readLoop(c, r.RemoteAddr)
}

// readLoop drives one connection. The session joins the notification
// registry on its first well-formed request and leaves when the transport
// reports the connection gone.
func (s *Server) readLoop(c *sessionConn, remote string) {
	defer func() {
		s.registry.Unregister(c.id)
		c.close()
		log.Printf("[rpc] client disconnected: %s (session %s)", remote, c.id)
	}()

	registered := false
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.reply(c, Response{Error: &RespError{Code: codeParseError, Message: "parse error"}})
			continue
		}
		if req.Method == "" {
			s.reply(c, Response{ID: req.ID, Error: &RespError{Code: codeInvalidRequest, Message: "missing method"}})
			continue
		}

		if !registered {
			s.registry.Register(c.id, c)
			registered = true
		}

		s.reply(c, s.dispatch(req))
	}
}

func (s *Server) dispatch(req Request) Response {
	switch req.Method {
	case "tools/list":
		return Response{ID: req.ID, Result: ListResult{Tools: s.tools.List()}}

	case "tools/call":
		var params CallParams
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
			return Response{ID: req.ID, Error: &RespError{Code: codeInvalidParams, Message: "tools/call requires a tool name"}}
		}
		return Response{ID: req.ID, Result: s.tools.Call(params.Name, params.Arguments)}

	case "ping":
		return Response{ID: req.ID, Result: struct{}{}}

	default:
		return Response{ID: req.ID, Error: &RespError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}}
	}
}

func (s *Server) reply(c *sessionConn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("[rpc] response marshal error: %v", err)
		return
	}
	if err := c.enqueue(data); err != nil {
		log.Printf("[rpc] reply to session %s dropped: %v", c.id, err)
	}
}

type statusPayload struct {
	Connected    bool  `json:"connected"`
	LastPosition int   `json:"last_position,omitempty"`
	Sessions     int   `json:"sessions"`
	SamplesSeen  int64 `json:"samples_seen"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statusPayload{
		Connected:    s.source.Connected(),
		LastPosition: s.tracker.LastPosition(),
		Sessions:     s.registry.Count(),
		SamplesSeen:  s.tracker.Observed(),
	})
}

func (s *Server) handlePasses(w http.ResponseWriter, r *http.Request) {
	count := 20
	if v := r.URL.Query().Get("count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			count = n
		}
	}
	events, err := s.passes.Recent(count)
	if err != nil {
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*race.PassEvent{}
	}
	writeJSON(w, events)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	ids := s.registry.IDs()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, map[string]any{
		"count":    len(ids),
		"sessions": ids,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[rpc] response encode error: %v", err)
	}
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	if r.URL.Query().Get("token") == s.authToken {
		return true
	}
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken
}

func ListenAndServe(host string, port int, handler http.Handler) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("[rpc] server listening on %s", addr)
	return http.ListenAndServe(addr, handler)
}
