/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import "testing"

func TestAssembleLeaderboardOrdersDescending(t *testing.T) {
	players := []PlayerInfo{
		{ID: "p1", Name: "alice", Score: Score{Points: 10}},
		{ID: "p2", Name: "bob", Score: Score{Points: 30}},
		{ID: "p3", Name: "carol", Score: Score{Points: 20}},
	}

	standings := AssembleLeaderboard(players, FlatScoring{PointsPerCorrect: 10})

	if len(standings) != 3 {
		t.Fatalf("expected 3 standings, got %d", len(standings))
	}
	for i, want := range []string{"bob", "carol", "alice"} {
		if standings[i].Player.Name != want {
			t.Fatalf("rank %d: expected %q, got %q", i+1, want, standings[i].Player.Name)
		}
		if standings[i].Rank != i+1 {
			t.Fatalf("expected rank %d, got %d", i+1, standings[i].Rank)
		}
	}
	for i := 1; i < len(standings); i++ {
		if standings[i].Metric > standings[i-1].Metric {
			t.Fatalf("metric increased between ranks %d and %d", i, i+1)
		}
	}
}

func TestAssembleLeaderboardTiesKeepJoinOrder(t *testing.T) {
	players := []PlayerInfo{
		{ID: "p1", Name: "alice", Score: Score{Runs: 12}},
		{ID: "p2", Name: "bob", Score: Score{Runs: 12, Wickets: 2}},
		{ID: "p3", Name: "carol", Score: Score{Runs: 18}},
	}

	standings := AssembleLeaderboard(players, CricketScoring{})

	for i, want := range []string{"carol", "alice", "bob"} {
		if standings[i].Player.Name != want {
			t.Fatalf("rank %d: expected %q, got %q", i+1, want, standings[i].Player.Name)
		}
	}
}

func TestAssembleLeaderboardIsPure(t *testing.T) {
	players := []PlayerInfo{
		{ID: "p1", Name: "alice", Score: Score{Points: 10}},
		{ID: "p2", Name: "bob", Score: Score{Points: 20}},
	}

	first := AssembleLeaderboard(players, FlatScoring{PointsPerCorrect: 10})
	second := AssembleLeaderboard(players, FlatScoring{PointsPerCorrect: 10})

	if players[0].Name != "alice" || players[1].Name != "bob" {
		t.Fatal("input roster was reordered")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("same roster produced different rankings at index %d", i)
		}
	}
}

func TestAssembleLeaderboardEmptyRoster(t *testing.T) {
	if standings := AssembleLeaderboard(nil, CricketScoring{}); len(standings) != 0 {
		t.Fatalf("expected no standings for an empty roster, got %d", len(standings))
	}
}
