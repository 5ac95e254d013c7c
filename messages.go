/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"fmt"
)

// Messages coming from clients
type ClientMessage struct {
	Type          string     `json:"type"`                    // "join", "start_game", "submit_answer", "end_game"
	PlayerName    string     `json:"playerName,omitempty"`    // join
	Token         string     `json:"token,omitempty"`         // join (reconnect)
	Questions     []Question `json:"questions,omitempty"`     // start_game
	QuestionIndex int        `json:"questionIndex,omitempty"` // submit_answer
	Answer        string     `json:"answer,omitempty"`        // submit_answer, one of "A"-"D"
}

// SessionInfoMessage is sent to a single client once its join (or reconnect)
// has been accepted. The token survives reconnects and reclaims the same
// roster slot.
type SessionInfoMessage struct {
	Type      string `json:"type"` // "session_info"
	RoomID    string `json:"roomId"`
	PlayerID  string `json:"playerId"`
	Token     string `json:"token"`
	Phase     Phase  `json:"phase"`
	Capacity  int    `json:"capacity"`
	Reclaimed bool   `json:"reclaimed"` // true when an existing slot was reclaimed
}

// RosterMessage carries the full ordered player list.
type RosterMessage struct {
	Type    string       `json:"type"` // "roster"
	Players []PlayerInfo `json:"players"`
}

type QuizStartedMessage struct {
	Type string `json:"type"` // "quiz_started"
}

// QuestionsMessage delivers the question set, stripped of the answer key.
type QuestionsMessage struct {
	Type      string         `json:"type"` // "questions"
	Questions []QuestionView `json:"questions"`
}

// ScoreUpdateMessage carries the updated player list after an accepted answer.
type ScoreUpdateMessage struct {
	Type    string       `json:"type"` // "score_update"
	Players []PlayerInfo `json:"players"`
}

// LeaderboardMessage carries the final ranking once the room is finished.
type LeaderboardMessage struct {
	Type      string     `json:"type"` // "leaderboard"
	Standings []Standing `json:"standings"`
}

// ErrorMessage is sent only to the offending client.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(err error) ErrorMessage {
	return ErrorMessage{
		Type:    "error",
		Code:    errorCode(err),
		Message: err.Error(),
	}
}

// decodeServerMessage turns a raw server payload into one of the typed
// message structs above, dispatching on the "type" tag.
func decodeServerMessage(data []byte) (any, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("decoding message tag: %w", err)
	}

	var msg any
	switch tag.Type {
	case "session_info":
		msg = &SessionInfoMessage{}
	case "roster":
		msg = &RosterMessage{}
	case "quiz_started":
		msg = &QuizStartedMessage{}
	case "questions":
		msg = &QuestionsMessage{}
	case "score_update":
		msg = &ScoreUpdateMessage{}
	case "leaderboard":
		msg = &LeaderboardMessage{}
	case "error":
		msg = &ErrorMessage{}
	default:
		return nil, fmt.Errorf("unknown message type %q", tag.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decoding %q message: %w", tag.Type, err)
	}

	return msg, nil
}
