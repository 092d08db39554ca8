package core

import (
	"context"
	"time"
)

// Transcript is the archived form of a session removed by a reset.
type Transcript struct {
	SessionID  string    `json:"session_id"`
	Mode       string    `json:"mode"`
	Agents     []string  `json:"agents"`
	Step       string    `json:"step"`
	Iterations int       `json:"iterations"`
	Turns      []Turn    `json:"turns"`
	Created    time.Time `json:"created"`
	Archived   time.Time `json:"archived"`
}

// Archive persists transcripts of reset sessions.
type Archive interface {
	Save(ctx context.Context, t Transcript) error
	Load(ctx context.Context, sessionID string) (Transcript, error)
	List(ctx context.Context) ([]string, error)
}
