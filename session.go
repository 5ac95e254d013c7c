/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import "fmt"

// Session is one client's local projection of a room. It is a cache of
// authoritative state, never the source of truth.
type Session struct {
	RoomID               string
	SelfID               string
	Token                string
	Phase                Phase
	Players              []PlayerInfo
	Questions            []QuestionView
	CurrentQuestionIndex int
	Standings            []Standing
}

func desync(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocolDesync, fmt.Sprintf(format, args...))
}

// ReduceSession applies one inbound server event to a session and returns
// the next session value. It assumes events arrive in causal order (roster
// before start, start before questions, questions before score updates,
// updates before the leaderboard) and reports ErrProtocolDesync when they do
// not; the caller is expected to discard its projection and resync rather
// than continue from a desynced state.
func ReduceSession(s Session, event any) (Session, error) {
	switch ev := event.(type) {
	case *SessionInfoMessage:
		// First event of a join or reconnect: reset the projection and let
		// the resync replay any later transitions.
		return Session{
			RoomID: ev.RoomID,
			SelfID: ev.PlayerID,
			Token:  ev.Token,
			Phase:  PhaseWaiting,
		}, nil

	case *RosterMessage:
		if s.Phase == PhaseFinished {
			return s, desync("roster update after leaderboard")
		}
		s.Players = clonePlayers(ev.Players)
		s.CurrentQuestionIndex = minAnswered(s.Players)
		return s, nil

	case *QuizStartedMessage:
		if s.Phase != PhaseWaiting {
			return s, desync("quiz_started in phase %q", s.Phase)
		}
		if len(s.Players) == 0 {
			return s, desync("quiz_started before roster")
		}
		s.Phase = PhaseActive
		return s, nil

	case *QuestionsMessage:
		if s.Phase != PhaseActive {
			return s, desync("questions in phase %q", s.Phase)
		}
		if len(s.Questions) != 0 {
			return s, desync("duplicate question set")
		}
		s.Questions = append([]QuestionView(nil), ev.Questions...)
		s.CurrentQuestionIndex = 0
		return s, nil

	case *ScoreUpdateMessage:
		if s.Phase != PhaseActive {
			return s, desync("score_update in phase %q", s.Phase)
		}
		if len(s.Questions) == 0 {
			return s, desync("score_update before questions")
		}
		s.Players = clonePlayers(ev.Players)
		s.CurrentQuestionIndex = minAnswered(s.Players)
		return s, nil

	case *LeaderboardMessage:
		if s.Phase == PhaseFinished {
			return s, desync("duplicate leaderboard")
		}
		s.Phase = PhaseFinished
		s.Standings = append([]Standing(nil), ev.Standings...)
		return s, nil

	case *ErrorMessage:
		// Command rejections do not move the projection; the client returns
		// to its pre-command state by simply keeping it.
		return s, nil

	default:
		return s, desync("unrecognized event %T", event)
	}
}

func clonePlayers(players []PlayerInfo) []PlayerInfo {
	return append([]PlayerInfo(nil), players...)
}

func minAnswered(players []PlayerInfo) int {
	if len(players) == 0 {
		return 0
	}
	index := players[0].Answered
	for _, p := range players[1:] {
		if p.Answered < index {
			index = p.Answered
		}
	}
	return index
}
