package match

import "time"

type CommandType string

const (
	CmdJoin   CommandType = "Join"
	CmdLeave  CommandType = "Leave"
	CmdStart  CommandType = "Start"
	CmdSubmit CommandType = "Submit"
	CmdGiveUp CommandType = "GiveUp"
	CmdReset  CommandType = "Reset"
)

/*
	CmdJoin   -> EvtPlayerJoined, or EvtRejoined when the handle is already a member
	CmdLeave  -> EvtPlayerLeft (+ EvtGameFinished if a match was running) or EvtRoomEmptied
	CmdStart  -> EvtGameStarted
	CmdSubmit -> EvtScoreUpdated (+ EvtGameFinished on the first full clear)
	CmdGiveUp -> EvtPlayerGaveUp, room is emptied
	CmdReset  -> EvtGameReset
*/

type Command struct {
	Type        CommandType
	ConnID      string
	Name        string
	Problem     ProblemRef // CmdStart
	PassedTests int        // CmdSubmit
	Round       int        // CmdSubmit: when set, must match the running round
	At          time.Time  // CmdSubmit
}

type EventType string

const (
	EvtPlayerJoined EventType = "PlayerJoined"
	EvtRejoined     EventType = "Rejoined"
	EvtPlayerLeft   EventType = "PlayerLeft"
	EvtRoomEmptied  EventType = "RoomEmptied"
	EvtGameStarted  EventType = "GameStarted"
	EvtScoreUpdated EventType = "ScoreUpdated"
	EvtGameFinished EventType = "GameFinished"
	EvtPlayerGaveUp EventType = "PlayerGaveUp"
	EvtGameReset    EventType = "GameReset"
)

const (
	ReasonFullClear    = "fullClear"
	ReasonOpponentLeft = "opponentLeft"
)

type Event struct {
	Type        EventType
	PlayerID    string
	PlayerName  string
	PassedTests int
	WinnerID    string
	WinnerName  string
	Reason      string
}

// Apply validates cmd against r and returns the resulting room. r is never
// modified; on error the original room is returned unchanged.
func Apply(r Room, cmd Command) ([]Event, Room, error) {
	next := r.Clone()

	switch cmd.Type {
	case CmdJoin:
		if p, ok := r.Player(cmd.ConnID); ok {
			return []Event{{Type: EvtRejoined, PlayerID: p.ID, PlayerName: p.Name}}, r, nil
		}
		if r.Full() {
			return nil, r, ErrRoomFull
		}
		next.Players = append(next.Players, Player{ID: cmd.ConnID, Name: cmd.Name})
		return []Event{{Type: EvtPlayerJoined, PlayerID: cmd.ConnID, PlayerName: cmd.Name}}, next, nil

	case CmdLeave:
		i := r.PlayerIndex(cmd.ConnID)
		if i < 0 {
			return nil, r, ErrNotInRoom
		}
		gone := r.Players[i]
		next.Players = append(next.Players[:i], next.Players[i+1:]...)

		if next.Empty() {
			return []Event{{Type: EvtRoomEmptied, PlayerID: gone.ID, PlayerName: gone.Name}}, next, nil
		}

		events := []Event{{Type: EvtPlayerLeft, PlayerID: gone.ID, PlayerName: gone.Name}}

		// A running match cannot continue with one player, so whoever stayed wins.
		if r.Status == StatusInProgress {
			w := next.Players[0]
			next.Status = StatusFinished
			next.WinnerID = w.ID
			events = append(events, Event{
				Type:       EvtGameFinished,
				WinnerID:   w.ID,
				WinnerName: w.Name,
				Reason:     ReasonOpponentLeft,
			})
		}
		return events, next, nil

	case CmdStart:
		if err := CanStart(r, cmd.ConnID); err != nil {
			return nil, r, err
		}
		if cmd.Problem.ID == "" {
			return nil, r, ErrNoProblemsAvailable
		}
		next.Status = StatusInProgress
		next.ProblemID = cmd.Problem.ID
		next.TestCount = cmd.Problem.TestCount
		next.WinnerID = ""
		next.Round++
		next.resetScores()
		return []Event{{Type: EvtGameStarted}}, next, nil

	case CmdSubmit:
		if r.Status != StatusInProgress {
			return nil, r, ErrNotInProgress
		}
		if cmd.Round != 0 && cmd.Round != r.Round {
			return nil, r, ErrNotInProgress
		}
		i := r.PlayerIndex(cmd.ConnID)
		if i < 0 {
			return nil, r, ErrNotInRoom
		}
		if cmd.PassedTests < 0 || cmd.PassedTests > r.TestCount {
			return nil, r, ErrInvalidScore
		}

		at := cmd.At
		if at.IsZero() {
			at = time.Now()
		}
		p := &next.Players[i]
		p.PassedTests = cmd.PassedTests
		p.LastSubmissionTime = &at

		events := []Event{{
			Type:        EvtScoreUpdated,
			PlayerID:    p.ID,
			PlayerName:  p.Name,
			PassedTests: p.PassedTests,
		}}

		if isFullClear(r, cmd.PassedTests) {
			next.Status = StatusFinished
			next.WinnerID = p.ID
			events = append(events, Event{
				Type:       EvtGameFinished,
				WinnerID:   p.ID,
				WinnerName: p.Name,
				Reason:     ReasonFullClear,
			})
		}
		return events, next, nil

	case CmdGiveUp:
		loser, ok := r.Player(cmd.ConnID)
		if !ok {
			return nil, r, ErrNotInRoom
		}
		e := Event{Type: EvtPlayerGaveUp, PlayerID: loser.ID, PlayerName: loser.Name}
		if w, ok := r.Opponent(cmd.ConnID); ok {
			e.WinnerID = w.ID
			e.WinnerName = w.Name
		}
		// Forfeit closes the room for everyone.
		next.Players = nil
		return []Event{e}, next, nil

	case CmdReset:
		if !r.HasPlayer(cmd.ConnID) {
			return nil, r, ErrNotInRoom
		}
		next.Status = StatusWaiting
		next.ProblemID = ""
		next.TestCount = 0
		next.WinnerID = ""
		next.resetScores()
		return []Event{{Type: EvtGameReset}}, next, nil

	default:
		return nil, r, ErrUnknownCommand
	}
}

// CanJoin reports whether connID would be admitted to r. A current member is
// always admitted.
func CanJoin(r Room, connID string) error {
	if r.HasPlayer(connID) {
		return nil
	}
	if r.Full() {
		return ErrRoomFull
	}
	return nil
}

// CanStart reports why connID may not start a round in r, if anything.
func CanStart(r Room, connID string) error {
	if !r.HasPlayer(connID) {
		return ErrNotInRoom
	}
	if len(r.Players) < MaxPlayers {
		return ErrInsufficientPlayers
	}
	if r.Status != StatusWaiting {
		return ErrAlreadyInProgress
	}
	return nil
}

// CanSubmit reports whether connID may submit against the running round.
func CanSubmit(r Room, connID string) error {
	if r.Status != StatusInProgress {
		return ErrNotInProgress
	}
	if !r.HasPlayer(connID) {
		return ErrNotInRoom
	}
	return nil
}

func isFullClear(r Room, passed int) bool {
	return r.TestCount > 0 && passed == r.TestCount
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
