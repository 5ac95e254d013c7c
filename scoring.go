/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import "fmt"

// answerLabels is the fixed choice set shown to players. Question content is
// otherwise opaque to the room.
var answerLabels = []string{"A", "B", "C", "D"}

// Question is one entry of the set supplied by whichever player starts the
// quiz. Correct never leaves the server.
type Question struct {
	Index   int      `json:"index"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
	Correct string   `json:"correct,omitempty"`
}

// QuestionView is the client-facing shape of a Question.
type QuestionView struct {
	Index   int      `json:"index"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

func (q Question) view() QuestionView {
	return QuestionView{
		Index:   q.Index,
		Text:    q.Text,
		Options: q.Options,
	}
}

func validAnswer(answer string) bool {
	for _, label := range answerLabels {
		if answer == label {
			return true
		}
	}
	return false
}

// Score accumulates whichever fields the active rule writes to. Flat scoring
// uses Points; cricket scoring uses Runs and Wickets.
type Score struct {
	Points  int `json:"points"`
	Runs    int `json:"runs"`
	Wickets int `json:"wickets"`
}

func (s Score) add(d Score) Score {
	s.Points += d.Points
	s.Runs += d.Runs
	s.Wickets += d.Wickets
	return s
}

// ScoringRule maps a question/answer pair to a score delta. Implementations
// must be pure: no state, no side effects, so rooms can apply them and tests
// can call them directly.
type ScoringRule interface {
	Name() string
	Score(q Question, answer string) Score
	Metric(s Score) int
}

// FlatScoring awards a fixed number of points per correct answer.
type FlatScoring struct {
	PointsPerCorrect int
}

func (FlatScoring) Name() string { return "flat" }

func (f FlatScoring) Score(q Question, answer string) Score {
	if answer != q.Correct {
		return Score{}
	}
	return Score{Points: f.PointsPerCorrect}
}

func (FlatScoring) Metric(s Score) int { return s.Points }

// CricketScoring awards six runs per correct answer and one wicket per wrong
// one. Ranking is by runs; wickets are display only.
type CricketScoring struct{}

func (CricketScoring) Name() string { return "cricket" }

func (CricketScoring) Score(q Question, answer string) Score {
	if answer == q.Correct {
		return Score{Runs: 6}
	}
	return Score{Wickets: 1}
}

func (CricketScoring) Metric(s Score) int { return s.Runs }

func scoringRule(name string) (ScoringRule, error) {
	switch name {
	case "flat":
		return FlatScoring{PointsPerCorrect: 10}, nil
	case "cricket":
		return CricketScoring{}, nil
	default:
		return nil, fmt.Errorf("unknown scoring policy (must be \"flat\" or \"cricket\"): %q", name)
	}
}
