package match

import "errors"

var (
	ErrRoomNotFound        = errors.New("room does not exist")
	ErrRoomFull            = errors.New("room is full")
	ErrInsufficientPlayers = errors.New("need two players to start the game")
	ErrAlreadyInProgress   = errors.New("game already in progress")
	ErrNoProblemsAvailable = errors.New("no problems available")
	ErrNotInProgress       = errors.New("game not in progress")
	ErrNotInRoom           = errors.New("you are not a member of this room")
	ErrInvalidName         = errors.New("player name is required")
	ErrInvalidScore        = errors.New("passed test count out of range")
	ErrUnknownCommand      = errors.New("unsupported command")
)

var validation = []error{
	ErrRoomNotFound,
	ErrRoomFull,
	ErrInsufficientPlayers,
	ErrAlreadyInProgress,
	ErrNoProblemsAvailable,
	ErrNotInProgress,
	ErrNotInRoom,
	ErrInvalidName,
	ErrInvalidScore,
	ErrUnknownCommand,
}

// IsValidation reports whether err is a game-logic rejection rather than an
// infrastructure failure.
func IsValidation(err error) bool {
	for _, v := range validation {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
