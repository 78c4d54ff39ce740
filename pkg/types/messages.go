// Package types is the public websocket protocol: event names and the JSON
// envelope every frame travels in. Payload shapes live next to the server.
package types

import "encoding/json"

// Client -> Server
//
// createRoom:     { playerName }
// joinRoom:       { roomId, playerName }
// leaveRoom:      { roomId }
// startGame:      { roomId }
// submitSolution: { roomId, passedTests }
// submitCode:     { roomId, sourceCode, languageId }
// giveUp:         { roomId }
// resetGame:      { roomId }
// syncRoom:       { roomId }
const (
	EventCreateRoom     = "createRoom"
	EventJoinRoom       = "joinRoom"
	EventLeaveRoom      = "leaveRoom"
	EventStartGame      = "startGame"
	EventSubmitSolution = "submitSolution"
	EventSubmitCode     = "submitCode"
	EventGiveUp         = "giveUp"
	EventResetGame      = "resetGame"
	EventSyncRoom       = "syncRoom"
)

// Server -> Client
//
// roomCreated:       { roomId, players }          sender
// roomJoined:        { roomId, players }          sender
// playerJoinedRoom:  { players, playerName }      others in room
// playerLeftRoom:    { players, playerName }      remaining
// gameStarted:       { problem }                  room
// testResultsUpdate: { playerId, passedTests }    room
// gameFinished:      { winnerId, reason }         room
// playerGaveUp:      { loser, winner }            room
// gameReset:         {}                           room
// roomState:         { room }                     sender
// submissionResult:  { passedCount, totalCount, results } sender
// roomError:         { message }                  sender (or room for noProblems)
// serverError:       { message }                  sender
const (
	EventRoomCreated       = "roomCreated"
	EventRoomJoined        = "roomJoined"
	EventPlayerJoinedRoom  = "playerJoinedRoom"
	EventPlayerLeftRoom    = "playerLeftRoom"
	EventGameStarted       = "gameStarted"
	EventTestResultsUpdate = "testResultsUpdate"
	EventGameFinished      = "gameFinished"
	EventPlayerGaveUp      = "playerGaveUp"
	EventGameReset         = "gameReset"
	EventRoomState         = "roomState"
	EventSubmissionResult  = "submissionResult"
	EventRoomError         = "roomError"
	EventServerError       = "serverError"
)

// Envelope wraps one event in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into an envelope for event.
func NewEnvelope(event string, data any) (Envelope, error) {
	if data == nil {
		return Envelope{Event: event}, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: b}, nil
}
