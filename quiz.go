// Quizbox trivia rooms
//
// One player creates a room (or is matchmade into the oldest waiting one),
// others join by code, and the group answers a shared question sequence in
// lock-step before a final ranked leaderboard is published.
//
// Features:
// - WebSockets per room ID: /quiz/:roomid and /quiz/:roomid/ws
// - Host-less rooms: any member may start once enough players have joined
// - Durable join tokens, so a dropped connection can reclaim its slot
// - Disconnected players evicted from waiting rooms after a timeout
// - Pluggable scoring (flat points or cricket runs/wickets) via --scoring
// - Random 6-char room IDs via crypto/rand, with server-side collision check
// - Atomic claim-or-create matchmaking: oldest waiting room wins
// - Rooms auto-reaped after configurable idle timeout
// - In-browser QR button to share the current room, backed by go-qrcode

package main

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "quizbox_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := randomHex(16)

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// serveWSForManager upgrades the connection and attaches it to the room
// named by :roomid. The read pump dispatches commands into the room's
// channels; the write pump drains the per-client send channel.
func serveWSForManager(cfg *Config, rm *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		room := rm.Get(roomID)
		if room == nil {
			http.Error(w, ErrRoomNotFound.Error(), http.StatusNotFound)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ROOMS: Upgrade error: %v", err)
			return
		}

		client := &roomClient{
			send: make(chan any, 8),
		}

		room.register <- client

		go writePump(client, conn)
		readPump(client, conn, room)
	}
}

func readPump(c *roomClient, conn *websocket.Conn, r *Room) {
	defer func() {
		r.unreg <- c
		_ = conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "join":
			r.joins <- joinRequest{client: c, msg: msg}
		case "start_game":
			r.starts <- startRequest{client: c, msg: msg}
		case "submit_answer":
			r.answers <- answerRequest{client: c, msg: msg}
		case "end_game":
			r.ends <- endRequest{client: c}
		default:
			// ignore unknown types
		}
	}
}

func writePump(c *roomClient, conn *websocket.Conn) {
	defer conn.Close()

	for msg := range c.send {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// createRoomHandler allocates a fresh room and returns its id for clients
// that want a specific code to share instead of matchmaking.
func createRoomHandler(cfg *Config, rm *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		room, err := rm.Create()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			RoomID string `json:"roomId"`
		}{RoomID: room.ID()})
	}
}

// redirectMatchmade sends the browser to the oldest waiting room with a
// free slot, creating one only when none exists.
func redirectMatchmade(cfg *Config, path string, rm *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		room, err := rm.ClaimOrCreate()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		logf(cfg, "ROOMS: Matchmade visitor into %s/%s", path, room.ID())
		http.Redirect(w, r, cfg.prefix+path+"/"+room.ID(), http.StatusTemporaryRedirect)
	}
}

// QR handler: generates a PNG QR code for the current room URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomID := ps.ByName("roomid")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:roomid/qr; strip trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// ---- Static file paths ----

//go:embed quiz/index.html
var indexHTML []byte

//go:embed quiz/app.css
var quizboxCSS []byte

//go:embed quiz/app.js
var quizboxJS []byte

func getIndexHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		_, _ = w.Write(indexHTML)
	}
}

func getCssHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(quizboxCSS)
	}
}

func getJsHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(quizboxJS)
	}
}

// registerQuizGame sets up routes so that:
//   - GET  $path             → matchmake into the oldest waiting room
//   - POST $path             → create a room, returning {"roomId": ...}
//   - $path/:roomid          → HTML client
//   - $path/:roomid/ws       → WebSocket for that room
//   - $path/:roomid/qr       → PNG QR code for that room URL
func registerQuizGame(cfg *Config, path string, mux *httprouter.Router) {
	rule, err := scoringRule(cfg.scoring)
	if err != nil {
		// Config.validate rejects unknown policies before we get here.
		panic(err)
	}

	registerQuizRoutes(cfg, path, mux, newRoomManager(cfg, rule))
}

func registerQuizRoutes(cfg *Config, path string, mux *httprouter.Router, rm *RoomManager) {
	// Root path → matchmaking (claim-or-create)
	mux.GET(cfg.prefix+path, redirectMatchmade(cfg, path, rm))

	// Explicit room creation
	mux.POST(cfg.prefix+path, createRoomHandler(cfg, rm))

	// Per-room client view (HTML)
	mux.GET(cfg.prefix+path+"/:roomid", getIndexHandler(cfg))

	// Shared assets (no roomid in route)
	mux.GET(cfg.prefix+"/assets/quiz/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/quiz/app.js", getJsHandler(cfg))

	// Per-room websocket
	mux.GET(cfg.prefix+path+"/:roomid/ws", serveWSForManager(cfg, rm))

	// Per-room QR code
	mux.GET(cfg.prefix+path+"/:roomid/qr", qrHandler)
}
