/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import "sort"

// Standing is one row of the final ranking.
type Standing struct {
	Rank   int        `json:"rank"`
	Player PlayerInfo `json:"player"`
	Metric int        `json:"metric"`
}

// AssembleLeaderboard ranks the frozen roster descending by the rule's
// metric. The input slice is expected in join order; equal-metric players
// keep that order (stable sort), so it is a pure function of the roster.
func AssembleLeaderboard(players []PlayerInfo, rule ScoringRule) []Standing {
	standings := make([]Standing, 0, len(players))
	for _, p := range players {
		standings = append(standings, Standing{
			Player: p,
			Metric: rule.Metric(p.Score),
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Metric > standings[j].Metric
	})

	for i := range standings {
		standings[i].Rank = i + 1
	}

	return standings
}
