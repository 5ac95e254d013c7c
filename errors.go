/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Failures a client can hit while joining or playing. The first three are
// recoverable locally; the client falls back to its pre-join state and may
// try another room.
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrRoomFinished     = errors.New("room has already finished")
	ErrRoomStarted      = errors.New("room has already started")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrNoQuestions      = errors.New("question set must not be empty")
	ErrWrongPhase       = errors.New("operation not valid in this phase")
	ErrAlreadyAnswered  = errors.New("question already answered")
	ErrBadAnswer        = errors.New("answer must be one of A-D")
	ErrConnectionLost   = errors.New("connection to room lost")
	ErrProtocolDesync   = errors.New("event received out of causal order")
	ErrAllocation       = errors.New("room id space exhausted")
)

// errorCode maps a sentinel to the stable code carried on the wire.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrRoomFinished):
		return "room_finished"
	case errors.Is(err, ErrRoomStarted):
		return "room_started"
	case errors.Is(err, ErrNotEnoughPlayers):
		return "not_enough_players"
	case errors.Is(err, ErrNoQuestions):
		return "no_questions"
	case errors.Is(err, ErrWrongPhase):
		return "wrong_phase"
	case errors.Is(err, ErrAlreadyAnswered):
		return "already_answered"
	case errors.Is(err, ErrBadAnswer):
		return "bad_answer"
	case errors.Is(err, ErrConnectionLost):
		return "connection_lost"
	case errors.Is(err, ErrProtocolDesync):
		return "protocol_desync"
	case errors.Is(err, ErrAllocation):
		return "allocation_error"
	default:
		return "internal_error"
	}
}

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
