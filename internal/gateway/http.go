package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/park285/cheese-match-server/internal/boardimg"
	"github.com/park285/cheese-match-server/internal/match"
	"github.com/park285/cheese-match-server/internal/obslog"
	"github.com/park285/cheese-match-server/pkg/matchdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Handler returns the HTTP surface: status, room listing, board image, cluster
// listing and the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleStatus)
	mux.HandleFunc("GET /api/rooms", s.handleRooms)
	mux.HandleFunc("GET /api/rooms/{roomId}/board.png", s.handleBoard)
	mux.HandleFunc("GET /api/cluster/rooms", s.handleCluster)
	mux.HandleFunc("GET /ws", s.handleWS)
	return s.cors(mux)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleWS upgrades the request. Requests without an Origin header come from
// non-browser clients and are accepted.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" && !s.originAllowed(origin) {
		obslog.L().Warn("ws_origin_rejected", zap.String("origin", origin))
		writeJSON(w, http.StatusForbidden, matchdto.ErrorReply{Error: true, Message: "origin not allowed"})
		return
	}
	ws, err := websocket.Accept(w, r, s.acceptOpts)
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("origin", r.Header.Get("Origin")), zap.Error(err))
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	s.serveConn(r.Context(), ws)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, matchdto.StatusResponse{
		Message:     s.msgs.Text("status.running", nil, "Chess match server is running"),
		Version:     s.version,
		Status:      "running",
		ActiveRooms: s.matches.ActiveRooms(),
		Timestamp:   s.now().UTC(),
	})
}

func (s *Server) handleRooms(w http.ResponseWriter, _ *http.Request) {
	list := s.matches.ListSummaries()
	rooms := make([]matchdto.RoomSummary, 0, len(list))
	for _, sum := range list {
		rooms = append(rooms, match.SummaryDTO(sum))
	}
	writeJSON(w, http.StatusOK, matchdto.RoomsResponse{Rooms: rooms, Total: len(rooms)})
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	id, err := matchdto.NormalizeRoomID(r.PathValue("roomId"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, match.ErrRoomNotFound)
		return
	}
	moves, err := s.matches.BoardMoves(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, match.ErrRoomNotFound)
		return
	}
	png, err := boardimg.RenderPNG(moves, boardimg.Options{
		Flip:   r.URL.Query().Get("view") == "second",
		Header: id,
	})
	if err != nil {
		obslog.L().Error("board_render_error", zap.String("room_id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, match.ErrInternal)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	if s.cluster == nil {
		writeJSON(w, http.StatusServiceUnavailable, matchdto.ErrorReply{Error: true, Message: "room index not configured"})
		return
	}
	rooms, err := s.cluster.List(r.Context())
	if err != nil {
		obslog.L().Warn("cluster_list_error", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, matchdto.ErrorReply{Error: true, Message: "room index unavailable"})
		return
	}
	if rooms == nil {
		rooms = []matchdto.RoomSummary{}
	}
	writeJSON(w, http.StatusOK, matchdto.RoomsResponse{Rooms: rooms, Total: len(rooms)})
}

func (s *Server) writeError(w http.ResponseWriter, status int, e *match.Error) {
	writeJSON(w, status, matchdto.ErrorReply{Error: true, Message: s.message(e), Code: e.Code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
