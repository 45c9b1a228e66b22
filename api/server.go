package api

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/playlab/roomserver/channel"
	"github.com/playlab/roomserver/transport/websocket"
)

// Server represents the REST admin/monitoring API server.
type Server struct {
	channel *channel.Channel
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server bound to a channel and a WebSocket hub.
func NewServer(ch *channel.Channel, hub *websocket.Hub) *Server {
	s := &Server{
		channel: ch,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Rooms
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{id}", s.handleGetRoom).Methods("GET")
	api.HandleFunc("/rooms/{id}", s.handleDestroyRoom).Methods("DELETE")
	api.HandleFunc("/rooms/{id}/command", s.handleRoomCommand).Methods("POST")

	// Clients
	api.HandleFunc("/clients", s.handleListClients).Methods("GET")
	api.HandleFunc("/clients/{id}", s.handleGetClient).Methods("GET")
	api.HandleFunc("/clients/{id}", s.handlePurgeClient).Methods("DELETE")

	// Waiting pool
	api.HandleFunc("/pool", s.handleGetPool).Methods("GET")
	api.HandleFunc("/pool/dispatch", s.handleDispatchPool).Methods("POST")

	// Operator broadcast
	api.HandleFunc("/broadcast", s.handleBroadcast).Methods("POST")

	// WebSocket endpoints
	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.ServePlayerWS)
		s.router.HandleFunc("/ws/admin", s.hub.ServeAdminWS)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Room handlers

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.channel.Rooms().List()
	snaps := make([]channel.RoomSnapshot, 0, len(rooms))
	for _, room := range rooms {
		snaps = append(snaps, room.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
	})
	respondJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	room, err := s.channel.Rooms().Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, room.Snapshot())
}

func (s *Server) handleDestroyRoom(w http.ResponseWriter, r *http.Request) {
	// Idempotent teardown: a second DELETE of the same room is still a 204.
	s.channel.Rooms().Destroy(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

// handleRoomCommand drives the room state machine. A command whose guard
// fails is still a 202: state-transition violations are tolerated as
// redundant admin commands, logged server-side.
func (s *Server) handleRoomCommand(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	room, err := s.channel.Rooms().Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	var req struct {
		Command   string `json:"command"`
		ToPlayers bool   `json:"to_players"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed command body")
		return
	}

	switch req.Command {
	case channel.CommandStart:
		room.StartGame(req.ToPlayers)
	case channel.CommandPause:
		room.PauseGame(req.ToPlayers)
	case channel.CommandResume:
		room.ResumeGame(req.ToPlayers)
	case channel.CommandStop:
		room.StopGame(req.ToPlayers)
	default:
		respondError(w, http.StatusBadRequest, "unknown command: "+req.Command)
		return
	}

	respondJSON(w, http.StatusAccepted, room.Snapshot())
}

// Client handlers

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	all := s.channel.Clients().All()
	roster := make([]channel.RosterEntry, 0, len(all))
	for _, c := range all {
		roster = append(roster, channel.RosterEntry{
			ID:     c.ID,
			Role:   c.Role,
			State:  c.State,
			RoomID: c.RoomID,
		})
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].ID < roster[j].ID })
	respondJSON(w, http.StatusOK, roster)
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	c, err := s.channel.Clients().Lookup(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, channel.RosterEntry{
		ID:     c.ID,
		Role:   c.Role,
		State:  c.State,
		RoomID: c.RoomID,
	})
}

func (s *Server) handlePurgeClient(w http.ResponseWriter, r *http.Request) {
	s.channel.Purge(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

// Pool handlers

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.channel.Pool().Room().Snapshot())
}

func (s *Server) handleDispatchPool(w http.ResponseWriter, r *http.Request) {
	room, err := s.channel.Pool().DispatchNow()
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, room.Snapshot())
}

// handleBroadcast sends an operator text notice to every connected player.
func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	for _, c := range s.channel.Players() {
		if c.Sink == nil {
			continue
		}
		_ = c.Sink.Send(channel.SayText("", c.ID, req.Text))
	}
	w.WriteHeader(http.StatusAccepted)
}
