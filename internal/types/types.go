package types

import (
	"math"

	"github.com/DoyleJ11/codeduel-backend/internal/catalog"
	"github.com/DoyleJ11/codeduel-backend/internal/match"
)

type CreateRoom struct {
	PlayerName string `json:"playerName"`
}

type JoinRoom struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

// RoomRef is the payload of every event that only names a room.
type RoomRef struct {
	RoomID string `json:"roomId"`
}

type SubmitSolution struct {
	RoomID      string  `json:"roomId"`
	PassedTests float64 `json:"passedTests"`
}

// Passed returns PassedTests as a count. Whole numbers sent in float form
// (5.0) are accepted; fractions, negatives and huge values are not.
func (s SubmitSolution) Passed() (int, error) {
	f := s.PassedTests
	if f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
		return 0, match.ErrInvalidScore
	}
	return int(f), nil
}

type SubmitCode struct {
	RoomID     string `json:"roomId"`
	SourceCode string `json:"sourceCode"`
	LanguageID int    `json:"languageId"`
}

type RoomMembers struct {
	RoomID  string         `json:"roomId"`
	Players []match.Player `json:"players"`
}

type PlayerChange struct {
	Players    []match.Player `json:"players"`
	PlayerName string         `json:"playerName"`
}

type GameStarted struct {
	Problem catalog.Problem `json:"problem"`
}

type TestResultsUpdate struct {
	PlayerID    string `json:"playerId"`
	PassedTests int    `json:"passedTests"`
}

type GameFinished struct {
	WinnerID string `json:"winnerId"`
	Reason   string `json:"reason,omitempty"`
}

type PlayerGaveUp struct {
	Loser  string `json:"loser"`
	Winner string `json:"winner,omitempty"`
}

type RoomState struct {
	Room match.Room `json:"room"`
}

type Error struct {
	Message string `json:"message"`
}
