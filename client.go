/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	dialTimeout   = 10 * time.Second
	retryAttempts = 5
	retryBackoff  = 250 * time.Millisecond
)

// SessionClient mirrors one room over a websocket it owns outright: the
// connection handle is scoped to the client, not the process. Commands are
// fire-and-forget; the authority's broadcasts are the only acknowledgment
// channel, and each one is folded into the local Session by ReduceSession.
type SessionClient struct {
	url        string
	playerName string
	dialer     *websocket.Dialer

	mu      sync.RWMutex
	session Session
	lastErr error

	writeMu sync.Mutex
	conn    *websocket.Conn

	updates chan Session
	done    chan struct{}
}

func NewSessionClient(rawURL, playerName string) *SessionClient {
	return &SessionClient{
		url:        rawURL,
		playerName: playerName,
		dialer: &websocket.Dialer{
			HandshakeTimeout: dialTimeout,
		},
		updates: make(chan Session, 16),
		done:    make(chan struct{}),
	}
}

// Connect dials the room endpoint and starts mirroring state. The dial is
// bounded by the handshake timeout and the given context.
func (sc *SessionClient) Connect(ctx context.Context) error {
	conn, _, err := sc.dialer.DialContext(ctx, sc.url, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", sc.url, err)
	}

	sc.writeMu.Lock()
	sc.conn = conn
	sc.writeMu.Unlock()

	go sc.readLoop()

	return nil
}

// Session returns a copy of the current projection.
func (sc *SessionClient) Session() Session {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.session
}

// Err reports why mirroring stopped, if it has.
func (sc *SessionClient) Err() error {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastErr
}

// Updates delivers a snapshot after every applied event. Slow consumers miss
// intermediate snapshots, never the order of the ones they do see.
func (sc *SessionClient) Updates() <-chan Session {
	return sc.updates
}

// Close tears the session down. The room authority infers departure from
// the connection loss; there is no leave command.
func (sc *SessionClient) Close() {
	select {
	case <-sc.done:
		return
	default:
		close(sc.done)
	}

	sc.writeMu.Lock()
	if sc.conn != nil {
		_ = sc.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		)
		_ = sc.conn.Close()
	}
	sc.writeMu.Unlock()
}

// Join requests a roster slot. With a token already on the session this is
// a reconnect, reclaiming the old slot.
func (sc *SessionClient) Join() error {
	return sc.send(ClientMessage{
		Type:       "join",
		PlayerName: sc.playerName,
		Token:      sc.Session().Token,
	})
}

// StartGame submits the question set and asks the authority to begin.
func (sc *SessionClient) StartGame(questions []Question) error {
	return sc.send(ClientMessage{Type: "start_game", Questions: questions})
}

// SubmitAnswer locks in an answer for the given question.
func (sc *SessionClient) SubmitAnswer(questionIndex int, answer string) error {
	return sc.send(ClientMessage{
		Type:          "submit_answer",
		QuestionIndex: questionIndex,
		Answer:        answer,
	})
}

// EndGame asks the authority to finish the match early.
func (sc *SessionClient) EndGame() error {
	return sc.send(ClientMessage{Type: "end_game"})
}

func (sc *SessionClient) send(msg ClientMessage) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()

	if sc.conn == nil {
		return ErrConnectionLost
	}
	if err := sc.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("%w: %s", ErrConnectionLost, err)
	}
	return nil
}

func (sc *SessionClient) readLoop() {
	for {
		sc.writeMu.Lock()
		conn := sc.conn
		sc.writeMu.Unlock()

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-sc.done:
				return
			default:
			}
			if err := sc.reconnect(); err != nil {
				sc.fail(err)
				return
			}
			continue
		}

		event, err := decodeServerMessage(data)
		if err != nil {
			continue
		}

		sc.mu.Lock()
		next, err := ReduceSession(sc.session, event)
		if err == nil {
			sc.session = next
		}
		sc.mu.Unlock()

		if err != nil {
			// A desynced projection cannot be repaired locally; drop it and
			// refetch authoritative state over a fresh connection.
			if err := sc.reconnect(); err != nil {
				sc.fail(err)
				return
			}
			continue
		}

		select {
		case sc.updates <- next:
		default:
		}
	}
}

// reconnect redials with bounded backoff and rejoins with the durable token
// so the authority resyncs this client's slot.
func (sc *SessionClient) reconnect() error {
	backoff := retryBackoff

	for attempt := 0; attempt < retryAttempts; attempt++ {
		select {
		case <-sc.done:
			return ErrConnectionLost
		default:
		}

		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		conn, _, err := sc.dialer.DialContext(ctx, sc.url, nil)
		cancel()
		if err != nil {
			continue
		}

		sc.writeMu.Lock()
		if sc.conn != nil {
			_ = sc.conn.Close()
		}
		sc.conn = conn
		sc.writeMu.Unlock()

		return sc.Join()
	}

	return fmt.Errorf("%w: retries exhausted", ErrConnectionLost)
}

func (sc *SessionClient) fail(err error) {
	sc.mu.Lock()
	sc.lastErr = err
	sc.mu.Unlock()
	close(sc.updates)
}
