/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase is the lifecycle stage of a room. Transitions are monotonic:
// waiting -> active -> finished.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
)

// PlayerInfo is the client-facing view of a player. Answered counts how many
// questions the player has locked in.
type PlayerInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Score    Score  `json:"score"`
	Wins     int    `json:"wins"`
	Answered int    `json:"answered"`
}

// Player holds the data we store server-side. The token is the durable join
// credential; it never appears in broadcasts.
type Player struct {
	Token  string
	ID     string
	Name   string
	Score  Score
	Wins   int
	Cursor int // index of the next unanswered question
}

func (p *Player) info() PlayerInfo {
	return PlayerInfo{
		ID:       p.ID,
		Name:     p.Name,
		Score:    p.Score,
		Wins:     p.Wins,
		Answered: p.Cursor,
	}
}

type roomClient struct {
	send  chan any
	token string // set once a join has been accepted
	gone  bool   // set once send has been closed; no further sends allowed
}

type joinRequest struct {
	client *roomClient
	msg    ClientMessage
}

type startRequest struct {
	client *roomClient
	msg    ClientMessage
}

type answerRequest struct {
	client *roomClient
	msg    ClientMessage
}

type endRequest struct {
	client *roomClient
}

// Room is the authority for one match. All roster, phase, question and score
// state is owned by the run goroutine and fanned out through per-client send
// channels, so every member observes broadcasts in the same order.
type Room struct {
	id         string
	capacity   int
	minPlayers int
	rule       ScoringRule

	clients map[*roomClient]bool
	players []*Player // join order, which is also leaderboard tie-break order

	register chan *roomClient
	unreg    chan *roomClient
	joins    chan joinRequest
	starts   chan startRequest
	answers  chan answerRequest
	ends     chan endRequest

	mu sync.RWMutex

	phase     Phase
	questions []Question
	standings []Standing // frozen at finish, replayed to late resyncs

	createdAt  time.Time
	lastActive time.Time
	reserved   int // matchmaking claims not yet consumed by a join
	claimed    int // matchmaking claims consumed since the last expiry check
}

func newRoom(roomID string, capacity, minPlayers int, rule ScoringRule) *Room {
	now := time.Now()
	return &Room{
		id:         roomID,
		capacity:   capacity,
		minPlayers: minPlayers,
		rule:       rule,
		clients:    make(map[*roomClient]bool),
		register:   make(chan *roomClient),
		unreg:      make(chan *roomClient),
		joins:      make(chan joinRequest),
		starts:     make(chan startRequest),
		answers:    make(chan answerRequest),
		ends:       make(chan endRequest),
		phase:      PhaseWaiting,
		createdAt:  now,
		lastActive: now,
	}
}

func (r *Room) run(cfg *Config) {
	for {
		select {
		case c := <-r.register:
			r.mu.Lock()
			r.lastActive = time.Now()
			r.clients[c] = true

			// Pre-join preview so the lobby can render the roster.
			r.sendLocked(c, RosterMessage{Type: "roster", Players: r.playerInfosLocked()})
			r.mu.Unlock()

		case c := <-r.unreg:
			r.mu.Lock()
			r.lastActive = time.Now()

			if _, ok := r.clients[c]; ok {
				delete(r.clients, c)
				c.gone = true
				close(c.send)
			}
			token := c.token
			r.mu.Unlock()

			// There is no explicit leave command; departure is inferred from
			// connection loss and the slot held for cfg.playerTimeout.
			if token != "" {
				go r.scheduleRemoval(cfg, token, cfg.playerTimeout)
			}

		case jr := <-r.joins:
			r.handleJoin(cfg, jr)

		case sr := <-r.starts:
			r.handleStart(cfg, sr)

		case ar := <-r.answers:
			r.handleAnswer(cfg, ar)

		case er := <-r.ends:
			r.handleEnd(cfg, er)
		}
	}
}

// ID reports the room's externally routable identifier.
func (r *Room) ID() string { return r.id }

// Phase reports the current lifecycle stage.
func (r *Room) Phase() Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.phase
}

// PlayerCount reports the current roster size.
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// CurrentQuestionIndex is the room-level question pointer: the furthest
// position every player has reached. Monotonic, bounded by the question
// count.
func (r *Room) CurrentQuestionIndex() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentQuestionIndexLocked()
}

func (r *Room) currentQuestionIndexLocked() int {
	if len(r.players) == 0 {
		return 0
	}
	index := r.players[0].Cursor
	for _, p := range r.players[1:] {
		if p.Cursor < index {
			index = p.Cursor
		}
	}
	return index
}

func (r *Room) playerInfosLocked() []PlayerInfo {
	infos := make([]PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		infos = append(infos, p.info())
	}
	return infos
}

func (r *Room) playerByTokenLocked(token string) *Player {
	if token == "" {
		return nil
	}
	for _, p := range r.players {
		if p.Token == token {
			return p
		}
	}
	return nil
}

// sendLocked delivers one message to one client, dropping the client if its
// channel is full. A command from a dropped client may still be queued in the
// room's inbox, so replies to gone clients are discarded rather than sent on
// the closed channel.
func (r *Room) sendLocked(c *roomClient, msg any) {
	if c.gone {
		return
	}
	select {
	case c.send <- msg:
	default:
		delete(r.clients, c)
		c.gone = true
		close(c.send)
	}
}

// broadcastLocked delivers one message to every connected client. Each
// client's channel is written by this goroutine only, so per-room broadcast
// order is identical for all members.
func (r *Room) broadcastLocked(msg any) {
	for client := range r.clients {
		r.sendLocked(client, msg)
	}
}

func (r *Room) broadcastRosterLocked() {
	r.broadcastLocked(RosterMessage{Type: "roster", Players: r.playerInfosLocked()})
}

// tryReserve claims one future roster slot for matchmaking. The claim is
// consumed by the next join, or released by releaseClaim after the grace
// period.
func (r *Room) tryReserve() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseWaiting || len(r.players)+r.reserved >= r.capacity {
		return false
	}
	r.reserved++
	return true
}

func (r *Room) releaseClaim() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.claimed > 0 {
		r.claimed--
	} else if r.reserved > 0 {
		r.reserved--
	}
}

// handleJoin processes "join" messages. A token reclaims an existing slot
// and receives a full state resync; otherwise a fresh slot is appended in
// arrival order and the new roster broadcast to every member.
func (r *Room) handleJoin(cfg *Config, jr joinRequest) {
	c := jr.client
	msg := jr.msg

	r.mu.Lock()
	defer r.mu.Unlock()

	if c.gone {
		return
	}

	r.lastActive = time.Now()

	if existing := r.playerByTokenLocked(msg.Token); existing != nil {
		c.token = existing.Token
		r.sendLocked(c, SessionInfoMessage{
			Type:      "session_info",
			RoomID:    r.id,
			PlayerID:  existing.ID,
			Token:     existing.Token,
			Phase:     r.phase,
			Capacity:  r.capacity,
			Reclaimed: true,
		})
		r.resyncLocked(c)
		logf(cfg, "ROOMS: Player %q reclaimed their slot in %s", existing.Name, r.id)
		return
	}

	if msg.PlayerName == "" {
		return
	}

	switch {
	case r.phase == PhaseFinished:
		r.sendLocked(c, errorMessage(ErrRoomFinished))
		return
	case r.phase == PhaseActive:
		r.sendLocked(c, errorMessage(ErrRoomStarted))
		return
	case len(r.players) >= r.capacity:
		r.sendLocked(c, errorMessage(ErrRoomFull))
		return
	}

	player := &Player{
		Token: uuid.NewString(),
		ID:    randomHex(4),
		Name:  msg.PlayerName,
	}
	r.players = append(r.players, player)
	c.token = player.Token

	if r.reserved > 0 {
		r.reserved--
		r.claimed++
	}

	r.sendLocked(c, SessionInfoMessage{
		Type:     "session_info",
		RoomID:   r.id,
		PlayerID: player.ID,
		Token:    player.Token,
		Phase:    r.phase,
		Capacity: r.capacity,
	})
	r.broadcastRosterLocked()

	logf(cfg, "ROOMS: Player %q joined %s (%d/%d)", player.Name, r.id, len(r.players), r.capacity)
}

// handleStart processes "start_game". Any member may start; there is no
// host. The initiator supplies the question set, which is stored and then
// broadcast to all members, always as quiz_started followed by questions.
func (r *Room) handleStart(cfg *Config, sr startRequest) {
	c := sr.client

	r.mu.Lock()
	defer r.mu.Unlock()

	if c.gone {
		return
	}

	r.lastActive = time.Now()

	if r.playerByTokenLocked(c.token) == nil {
		return
	}

	if r.phase != PhaseWaiting {
		r.sendLocked(c, errorMessage(ErrWrongPhase))
		return
	}
	if len(r.players) < r.minPlayers {
		r.sendLocked(c, errorMessage(ErrNotEnoughPlayers))
		return
	}
	if len(sr.msg.Questions) == 0 {
		r.sendLocked(c, errorMessage(ErrNoQuestions))
		return
	}

	r.questions = make([]Question, len(sr.msg.Questions))
	copy(r.questions, sr.msg.Questions)
	for i := range r.questions {
		r.questions[i].Index = i
	}

	r.phase = PhaseActive

	views := make([]QuestionView, 0, len(r.questions))
	for _, q := range r.questions {
		views = append(views, q.view())
	}

	r.broadcastLocked(QuizStartedMessage{Type: "quiz_started"})
	r.broadcastLocked(QuestionsMessage{Type: "questions", Questions: views})

	logf(cfg, "ROOMS: Quiz started in %s with %d questions", r.id, len(r.questions))
}

// handleAnswer processes "submit_answer". Every accepted answer advances the
// submitter's cursor by exactly one; answers for any other index (duplicate,
// late, or skipped-ahead) are refused, to the offending client only. Once
// every cursor reaches the question count the game ends automatically.
func (r *Room) handleAnswer(cfg *Config, ar answerRequest) {
	c := ar.client
	msg := ar.msg

	r.mu.Lock()
	defer r.mu.Unlock()

	if c.gone {
		return
	}

	r.lastActive = time.Now()

	player := r.playerByTokenLocked(c.token)
	if player == nil {
		return
	}

	if r.phase != PhaseActive {
		r.sendLocked(c, errorMessage(ErrWrongPhase))
		return
	}
	if !validAnswer(msg.Answer) {
		r.sendLocked(c, errorMessage(ErrBadAnswer))
		return
	}
	if player.Cursor >= len(r.questions) || msg.QuestionIndex != player.Cursor {
		r.sendLocked(c, errorMessage(ErrAlreadyAnswered))
		return
	}

	delta := r.rule.Score(r.questions[player.Cursor], msg.Answer)
	player.Score = player.Score.add(delta)
	player.Cursor++

	r.broadcastLocked(ScoreUpdateMessage{Type: "score_update", Players: r.playerInfosLocked()})

	if r.allAnsweredLocked() {
		r.endGameLocked(cfg)
	}
}

func (r *Room) allAnsweredLocked() bool {
	for _, p := range r.players {
		if p.Cursor < len(r.questions) {
			return false
		}
	}
	return len(r.players) > 0
}

// handleEnd processes an explicit "end_game" from any member. Repeated calls
// on a finished room are no-ops.
func (r *Room) handleEnd(cfg *Config, er endRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if er.client.gone {
		return
	}

	r.lastActive = time.Now()

	if r.playerByTokenLocked(er.client.token) == nil {
		return
	}

	r.endGameLocked(cfg)
}

// endGameLocked freezes the roster and scores, assembles the leaderboard,
// and broadcasts it. Idempotent.
func (r *Room) endGameLocked(cfg *Config) {
	if r.phase == PhaseFinished {
		return
	}
	r.phase = PhaseFinished

	r.standings = AssembleLeaderboard(r.playerInfosLocked(), r.rule)

	if len(r.standings) > 0 {
		if winner := r.playerByIDLocked(r.standings[0].Player.ID); winner != nil {
			winner.Wins++
		}
	}

	r.broadcastLocked(LeaderboardMessage{Type: "leaderboard", Standings: r.standings})

	logf(cfg, "ROOMS: Quiz finished in %s", r.id)
}

func (r *Room) playerByIDLocked(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// resyncLocked replays the authoritative state to one client, in causal
// order, so a reconnecting or desynced client can rebuild its projection.
func (r *Room) resyncLocked(c *roomClient) {
	r.sendLocked(c, RosterMessage{Type: "roster", Players: r.playerInfosLocked()})

	if r.phase == PhaseWaiting {
		return
	}

	views := make([]QuestionView, 0, len(r.questions))
	for _, q := range r.questions {
		views = append(views, q.view())
	}

	r.sendLocked(c, QuizStartedMessage{Type: "quiz_started"})
	r.sendLocked(c, QuestionsMessage{Type: "questions", Questions: views})
	r.sendLocked(c, ScoreUpdateMessage{Type: "score_update", Players: r.playerInfosLocked()})

	if r.phase == PhaseFinished {
		r.sendLocked(c, LeaderboardMessage{Type: "leaderboard", Standings: r.standings})
	}
}

// scheduleRemoval waits for d, and if no client holding this token has
// reconnected, drops the player from rooms still waiting. Active and
// finished rooms keep the slot so scores and the leaderboard stay intact.
func (r *Room) scheduleRemoval(cfg *Config, token string, d time.Duration) {
	time.Sleep(d)

	r.mu.Lock()
	defer r.mu.Unlock()

	for client := range r.clients {
		if client.token == token {
			return
		}
	}

	if r.phase != PhaseWaiting {
		return
	}

	dst := r.players[:0]
	changed := false

	for _, p := range r.players {
		if p.Token == token {
			changed = true
			logf(cfg, "ROOMS: Player %q timed out of %s", p.Name, r.id)
			continue
		}
		dst = append(dst, p)
	}
	r.players = dst

	if !changed {
		return
	}

	r.lastActive = time.Now()
	r.broadcastRosterLocked()
}

// closeAll disconnects all clients of this room (used by the reaper).
func (r *Room) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.clients {
		c.gone = true
		close(c.send)
		delete(r.clients, c)
	}
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
