package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

type apiResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type createRoomResponse struct {
	RoomCode string `json:"room_code"`
}

type joinRoomRequest struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
}

type drawCardRequest struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
}

type drawCardResponse struct {
	Success bool   `json:"success"`
	Card    *Card  `json:"card,omitempty"`
	Message string `json:"message,omitempty"`
}

type confirmCardRequest struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
}

type resetRoomRequest struct {
	RoomCode   string `json:"room_code"`
	ResetStats bool   `json:"reset_stats,omitempty"`
}

type endRoomRequest struct {
	RoomCode string `json:"room_code"`
}

type leaveRoomRequest struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
}

type kickPlayerRequest struct {
	RoomCode     string `json:"room_code"`
	PlayerToKick string `json:"player_to_kick"`
	Requester    string `json:"requester"`
}

type promoteHostRequest struct {
	RoomCode    string `json:"room_code"`
	NewHostName string `json:"new_host_name"`
	Requester   string `json:"requester"`
}

type updateShotsRequest struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
	Change     int    `json:"change"`
}

type clearTimerRequest struct {
	RoomCode string `json:"room_code"`
	TimerID  string `json:"timer_id"`
}

type discardPileResponse struct {
	Success bool        `json:"success"`
	Discard []DrawnCard `json:"discard"`
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func rejection(cfg *Config, w http.ResponseWriter, err error) {
	writeJSON(cfg, w, http.StatusOK, apiResult{Success: false, Message: err.Error()})
}

func createRoom(cfg *Config, store *RoomStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		room := store.Create(cfg)
		logf(cfg, "ROOMS: Created room %s for %s", room.Code(), realIP(r))
		writeJSON(cfg, w, http.StatusOK, createRoomResponse{RoomCode: room.Code()})
	}
}

func joinRoom(cfg *Config, store *RoomStore, b *Broadcaster) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req joinRoomRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, apiResult{Success: false, Message: "Room code and player name required"})
			return
		}
		if !validCode(req.RoomCode) {
			rejection(cfg, w, ErrInvalidCode)
			return
		}
		room, ok := store.Get(req.RoomCode)
		if !ok {
			rejection(cfg, w, ErrRoomNotFound)
			return
		}
		name, err := room.Join(req.PlayerName)
		if err != nil {
			rejection(cfg, w, err)
			return
		}
		logf(cfg, "GAMES: Player %q joined %s", name, room.Code())
		b.BroadcastState(room.Code(), room.Snapshot())
		writeJSON(cfg, w, http.StatusOK, apiResult{Success: true})
	}
}

// roomState is the pull half of the reconciliation protocol. A 404
// here is authoritative: the room is gone and the client tears down.
func roomState(cfg *Config, store *RoomStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		room, ok := store.Get(r.URL.Query().Get("room_code"))
		if !ok {
			writeJSON(cfg, w, http.StatusNotFound, map[string]string{"error": ErrRoomNotFound.Error()})
			return
		}
		writeJSON(cfg, w, http.StatusOK, room.Snapshot())
	}
}

func drawCard(cfg *Config, store *RoomStore, b *Broadcaster) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req drawCardRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, apiResult{Success: false, Message: "Room code and player name required"})
			return
		}
		room, ok := store.Get(req.RoomCode)
		if !ok {
			rejection(cfg, w, ErrRoomNotFound)
			return
		}
		card, err := room.Draw(req.PlayerName)
		if err != nil {
			rejection(cfg, w, err)
			return
		}
		logf(cfg, "GAMES: %q drew %q in %s", req.PlayerName, card.Title, room.Code())
		b.BroadcastState(room.Code(), room.Snapshot())
		writeJSON(cfg, w, http.StatusOK, drawCardResponse{Success: true, Card: &card})
	}
}

func confirmCard(cfg *Config, store *RoomStore, b *Broadcaster) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req confirmCardRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, apiResult{Success: false, Message: "Room code and player name required"})
			return
		}
		room, ok := store.Get(req.RoomCode)
		if !ok {
			rejection(cfg, w, ErrRoomNotFound)
			return
		}
		if err := room.Confirm(req.PlayerName); err != nil {
			rejection(cfg, w, err)
			return
		}
		b.BroadcastState(room.Code(), room.Snapshot())
		writeJSON(cfg, w, http.StatusOK, apiResult{Success: true})
	}
}

func resetRoom(cfg *Config, store *RoomStore, b *Broadcaster) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req resetRoomRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, apiResult{Success: false, Message: "Room code required"})
			return
		}
		room, ok := store.Get(req.RoomCode)
		if !ok {
			rejection(cfg, w, ErrRoomNotFound)
			return
		}
		room.Reset(req.ResetStats)
		logf(cfg, "GAMES: Reset room %s", room.Code())
		b.BroadcastState(room.Code(), room.Snapshot())
		writeJSON(cfg, w, http.StatusOK, apiResult{Success: true})
	}
}

func endRoom(cfg *Config, store *RoomStore, b *Broadcaster) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req endRoomRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, apiResult{Success: false, Message: "Room code required"})
			return
		}
		room, ok := store.Get(req.RoomCode)
		if !ok {
			rejection(cfg, w, ErrRoomNotFound)
			return
		}
		room.End()
		logf(cfg, "GAMES: Ended game in room %s", room.Code())
		b.BroadcastState(room.Code(), room.Snapshot())
		writeJSON(cfg, w, http.StatusOK, apiResult{Success: true})
	}
}

func leaveRoom(cfg *Config, store *RoomStore, b *Broadcaster) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req leaveRoomRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, apiResult{Success: false, Message: "Room code and player name required"})
			return
		}
		room, ok := store.Get(req.RoomCode)
		if !ok {
			rejection(cfg, w, ErrRoomNotFound)
			return
		}
		if err := room.Leave(req.PlayerName); err != nil {
			rejection(cfg, w, err)
			return
		}
		logf(cfg, "GAMES: Player %q left %s", req.PlayerName, room.Code())
		b.BroadcastState(room.Code(), room.Snapshot())
		writeJSON(cfg, w, http.StatusOK, apiResult{Success: true})
	}
}

func kickPlayer(cfg *Config, store *RoomStore, b *Broadcaster) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req kickPlayerRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, apiResult{Success: false, Message: "Room code, target, and requester required"})
			return
		}
		room, ok := store.Get(req.RoomCode)
		if !ok {
			rejection(cfg, w, ErrRoomNotFound)
			return
		}
		if err := room.Kick(req.PlayerToKick, req.Requester); err != nil {
			rejection(cfg, w, err)
			return
		}
		logf(cfg, "GAMES: %q kicked %q from %s", req.Requester, req.PlayerToKick, room.Code())
		b.NotifyKicked(room.Code(), req.PlayerToKick)
		b.BroadcastState(room.Code(), room.Snapshot())
		writeJSON(cfg, w, http.StatusOK, apiResult{Success: true})
	}
}

func promoteHost(cfg *Config, store *RoomStore, b *Broadcaster) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req promoteHostRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, apiResult{Success: false, Message: "Room code, target, and requester required"})
			return
		}
		room, ok := store.Get(req.RoomCode)
		if !ok {
			rejection(cfg, w, ErrRoomNotFound)
			return
		}
		if err := room.PromoteHost(req.NewHostName, req.Requester); err != nil {
			rejection(cfg, w, err)
			return
		}
		logf(cfg, "GAMES: %q promoted %q to host in %s", req.Requester, req.NewHostName, room.Code())
		b.BroadcastState(room.Code(), room.Snapshot())
		writeJSON(cfg, w, http.StatusOK, apiResult{Success: true})
	}
}

func updateShots(cfg *Config, store *RoomStore, b *Broadcaster) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req updateShotsRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, apiResult{Success: false, Message: "Room code and player name required"})
			return
		}
		room, ok := store.Get(req.RoomCode)
		if !ok {
			rejection(cfg, w, ErrRoomNotFound)
			return
		}
		if err := room.UpdateShots(req.PlayerName, req.Change); err != nil {
			rejection(cfg, w, err)
			return
		}
		b.BroadcastState(room.Code(), room.Snapshot())
		writeJSON(cfg, w, http.StatusOK, apiResult{Success: true})
	}
}

func clearTimer(cfg *Config, store *RoomStore, b *Broadcaster) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req clearTimerRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, apiResult{Success: false, Message: "Room code and timer id required"})
			return
		}
		room, ok := store.Get(req.RoomCode)
		if !ok {
			rejection(cfg, w, ErrRoomNotFound)
			return
		}
		room.ClearTimer(req.TimerID)
		b.BroadcastState(room.Code(), room.Snapshot())
		writeJSON(cfg, w, http.StatusOK, apiResult{Success: true})
	}
}

func discardPile(cfg *Config, store *RoomStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		room, ok := store.Get(r.URL.Query().Get("room_code"))
		if !ok {
			writeJSON(cfg, w, http.StatusNotFound, apiResult{Success: false, Message: ErrRoomNotFound.Error()})
			return
		}
		writeJSON(cfg, w, http.StatusOK, discardPileResponse{Success: true, Discard: room.Discard()})
	}
}

// roomQR renders a PNG QR code pointing at the join page for a room,
// for sharing across devices on the same network.
func roomQR(cfg *Config, store *RoomStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("code")
		if _, ok := store.Get(code); !ok {
			http.Error(w, ErrRoomNotFound.Error(), http.StatusNotFound)
			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/?room=" + code

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		_, _ = w.Write(png)
	}
}

// registerGameRoutes wires the game API, the push channel, and the QR
// share endpoint onto the mux.
func registerGameRoutes(cfg *Config, mux *httprouter.Router, store *RoomStore, b *Broadcaster) {
	mux.POST(cfg.prefix+"/api/create_game", createRoom(cfg, store))
	mux.POST(cfg.prefix+"/api/join_game", joinRoom(cfg, store, b))
	mux.GET(cfg.prefix+"/api/game_state", roomState(cfg, store))
	mux.POST(cfg.prefix+"/api/draw_card", drawCard(cfg, store, b))
	mux.POST(cfg.prefix+"/api/confirm_card", confirmCard(cfg, store, b))
	mux.POST(cfg.prefix+"/api/reset_game", resetRoom(cfg, store, b))
	mux.POST(cfg.prefix+"/api/end_game", endRoom(cfg, store, b))
	mux.POST(cfg.prefix+"/api/leave_game", leaveRoom(cfg, store, b))
	mux.POST(cfg.prefix+"/api/kick_player", kickPlayer(cfg, store, b))
	mux.POST(cfg.prefix+"/api/promote_host", promoteHost(cfg, store, b))
	mux.POST(cfg.prefix+"/api/update_shots", updateShots(cfg, store, b))
	mux.POST(cfg.prefix+"/api/clear_timer", clearTimer(cfg, store, b))
	mux.GET(cfg.prefix+"/api/discard_pile", discardPile(cfg, store))

	mux.GET(cfg.prefix+"/ws", serveWebSocket(cfg, store, b))

	mux.GET(cfg.prefix+"/rooms/:code/qr", roomQR(cfg, store))
}
