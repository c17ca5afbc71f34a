package domain

import "time"

// Player is one row of the shared roster. The id is assigned by the store at
// insertion time; names are display strings and are not unique.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Points int64  `json:"points"`
}

// Question is one entry of the ordered question sequence. Questions are owned
// by the content provider and immutable once fetched; ID is the ordinal index
// into the sequence.
type Question struct {
	ID       int      `json:"id"`
	Prompt   string   `json:"prompt"`
	ImageRef string   `json:"image_ref"`
	Answers  []Answer `json:"answers"`
}

type Answer struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
	Color   string `json:"color"`
}

// AnswerEvent is a single answer submission. It is transient: only its
// scoring effect is persisted.
type AnswerEvent struct {
	PlayerID       string
	QuestionID     int
	Correct        bool
	ElapsedSeconds float64
}

// Score is a player's point total after a score write-back.
type Score struct {
	PlayerID   string
	PlayerName string
	Points     int64
	UpdateTime time.Time
}

// Leaderboard lists players and their point totals, sorted by points in
// descending order.
type Leaderboard struct {
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	PlayerName string
	Points     float64
}
