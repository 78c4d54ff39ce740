package match

import (
	"slices"
	"time"
)

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in-progress"
	StatusFinished   Status = "finished"
)

const MaxPlayers = 2

type Player struct {
	ID                 string     `json:"id"` // connection handle
	Name               string     `json:"name"`
	PassedTests        int        `json:"passedTests"`
	LastSubmissionTime *time.Time `json:"lastSubmissionTime,omitempty"`
}

// Room is the persisted record of one match. ProblemID and TestCount are set
// iff Status != waiting, WinnerID iff Status == finished. Round counts
// started games and lets late results from an earlier round be discarded.
type Room struct {
	ID        string   `json:"id"`
	Players   []Player `json:"players"`
	Status    Status   `json:"status"`
	ProblemID string   `json:"problemId,omitempty"`
	TestCount int      `json:"testCount,omitempty"`
	WinnerID  string   `json:"winnerId,omitempty"`
	Round     int      `json:"round"`
}

// ProblemRef is the part of a catalog problem the state machine cares about.
type ProblemRef struct {
	ID        string
	TestCount int
}

func NewRoom(id, connID, name string) Room {
	return Room{
		ID:      id,
		Players: []Player{{ID: connID, Name: name}},
		Status:  StatusWaiting,
	}
}

func (r Room) Clone() Room {
	c := r
	c.Players = make([]Player, len(r.Players))
	for i, p := range r.Players {
		c.Players[i] = p
		if p.LastSubmissionTime != nil {
			t := *p.LastSubmissionTime
			c.Players[i].LastSubmissionTime = &t
		}
	}
	return c
}

func (r Room) Empty() bool { return len(r.Players) == 0 }

func (r Room) Full() bool { return len(r.Players) >= MaxPlayers }

func (r Room) PlayerIndex(connID string) int {
	return slices.IndexFunc(r.Players, func(p Player) bool { return p.ID == connID })
}

func (r Room) HasPlayer(connID string) bool { return r.PlayerIndex(connID) >= 0 }

func (r Room) Player(connID string) (Player, bool) {
	i := r.PlayerIndex(connID)
	if i < 0 {
		return Player{}, false
	}
	return r.Players[i], true
}

// Opponent returns the other member of a two-player room.
func (r Room) Opponent(connID string) (Player, bool) {
	for _, p := range r.Players {
		if p.ID != connID {
			return p, true
		}
	}
	return Player{}, false
}

// MemberIDs lists the connection handles currently in the room.
func (r Room) MemberIDs() []string {
	ids := make([]string, len(r.Players))
	for i, p := range r.Players {
		ids[i] = p.ID
	}
	return ids
}

func (r *Room) resetScores() {
	for i := range r.Players {
		r.Players[i].PassedTests = 0
		r.Players[i].LastSubmissionTime = nil
	}
}
