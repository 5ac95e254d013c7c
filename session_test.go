/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"testing"
)

func reduceAll(t *testing.T, s Session, events ...any) Session {
	t.Helper()
	for _, ev := range events {
		next, err := ReduceSession(s, ev)
		if err != nil {
			t.Fatalf("unexpected reducer error on %T: %v", ev, err)
		}
		s = next
	}
	return s
}

func TestReduceHappyPath(t *testing.T) {
	roster := []PlayerInfo{
		{ID: "p1", Name: "alice"},
		{ID: "p2", Name: "bob"},
	}
	questions := []QuestionView{
		{Index: 0, Text: "q0"},
		{Index: 1, Text: "q1"},
	}

	s := reduceAll(t, Session{},
		&SessionInfoMessage{Type: "session_info", RoomID: "R1", PlayerID: "p1", Token: "tok"},
		&RosterMessage{Type: "roster", Players: roster},
		&QuizStartedMessage{Type: "quiz_started"},
		&QuestionsMessage{Type: "questions", Questions: questions},
	)

	if s.RoomID != "R1" || s.SelfID != "p1" || s.Token != "tok" {
		t.Fatalf("session identity not mirrored: %+v", s)
	}
	if s.Phase != PhaseActive {
		t.Fatalf("expected active phase, got %q", s.Phase)
	}
	if len(s.Questions) != 2 || s.CurrentQuestionIndex != 0 {
		t.Fatalf("question set not applied: %+v", s)
	}

	scored := []PlayerInfo{
		{ID: "p1", Name: "alice", Score: Score{Points: 10}, Answered: 1},
		{ID: "p2", Name: "bob", Answered: 1},
	}
	s = reduceAll(t, s, &ScoreUpdateMessage{Type: "score_update", Players: scored})

	if s.CurrentQuestionIndex != 1 {
		t.Fatalf("expected pointer at 1 after both answered, got %d", s.CurrentQuestionIndex)
	}

	s = reduceAll(t, s, &LeaderboardMessage{Type: "leaderboard", Standings: []Standing{
		{Rank: 1, Player: scored[0], Metric: 10},
		{Rank: 2, Player: scored[1], Metric: 0},
	}})

	if s.Phase != PhaseFinished || len(s.Standings) != 2 {
		t.Fatalf("leaderboard not applied: %+v", s)
	}
}

func TestReducePointerIsMinimumAnswered(t *testing.T) {
	s := Session{Phase: PhaseActive, Questions: []QuestionView{{}, {}, {}}}
	s = reduceAll(t, s, &ScoreUpdateMessage{Type: "score_update", Players: []PlayerInfo{
		{ID: "p1", Answered: 2},
		{ID: "p2", Answered: 1},
	}})

	if s.CurrentQuestionIndex != 1 {
		t.Fatalf("expected the slowest player to pin the pointer at 1, got %d", s.CurrentQuestionIndex)
	}
}

func TestReduceDesyncs(t *testing.T) {
	roster := []PlayerInfo{{ID: "p1"}}

	cases := []struct {
		name    string
		session Session
		event   any
	}{
		{"start before roster", Session{}, &QuizStartedMessage{}},
		{"start while active", Session{Phase: PhaseActive, Players: roster}, &QuizStartedMessage{}},
		{"questions before start", Session{Players: roster}, &QuestionsMessage{}},
		{"duplicate questions", Session{Phase: PhaseActive, Questions: []QuestionView{{}}}, &QuestionsMessage{}},
		{"score before questions", Session{Phase: PhaseActive}, &ScoreUpdateMessage{}},
		{"score before start", Session{Players: roster}, &ScoreUpdateMessage{}},
		{"roster after finish", Session{Phase: PhaseFinished}, &RosterMessage{}},
		{"duplicate leaderboard", Session{Phase: PhaseFinished}, &LeaderboardMessage{}},
		{"unknown event", Session{}, struct{}{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := tc.session
			after, err := ReduceSession(tc.session, tc.event)
			if !errors.Is(err, ErrProtocolDesync) {
				t.Fatalf("expected ErrProtocolDesync, got %v", err)
			}
			if after.Phase != before.Phase {
				t.Fatalf("desync must not move the projection: %+v -> %+v", before, after)
			}
		})
	}
}

func TestReduceErrorMessageIsNoOp(t *testing.T) {
	s := Session{Phase: PhaseActive, Players: []PlayerInfo{{ID: "p1"}}}
	after, err := ReduceSession(s, &ErrorMessage{Type: "error", Code: "room_full"})
	if err != nil {
		t.Fatalf("command rejections should not error the reducer: %v", err)
	}
	if after.Phase != s.Phase || len(after.Players) != len(s.Players) {
		t.Fatalf("command rejection moved the projection: %+v", after)
	}
}

func TestReduceSessionInfoResetsProjection(t *testing.T) {
	s := Session{
		RoomID:    "R1",
		Phase:     PhaseActive,
		Players:   []PlayerInfo{{ID: "p1"}},
		Questions: []QuestionView{{}},
	}

	after, err := ReduceSession(s, &SessionInfoMessage{
		Type: "session_info", RoomID: "R1", PlayerID: "p1", Token: "tok", Reclaimed: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after.Phase != PhaseWaiting || len(after.Players) != 0 || len(after.Questions) != 0 {
		t.Fatalf("reconnect should reset the projection for resync: %+v", after)
	}
}
