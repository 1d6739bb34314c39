package queue

import (
	"time"

	"github.com/google/uuid"
	"github.com/rokbot/titlebot/internal/title"
)

// Request is one user's ask for a title. It is not modified after creation.
type Request struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Username  string      `json:"username"`
	Title     title.Title `json:"title"`
	Kingdom   string      `json:"kingdom"`
	X         int         `json:"x"`
	Y         int         `json:"y"`
	ChannelID string      `json:"channelId"`
	CreatedAt time.Time   `json:"createdAt"`
}

func NewRequest(userID, username string, t title.Title, kingdom string, x, y int, channelID string) Request {
	return Request{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  username,
		Title:     t,
		Kingdom:   kingdom,
		X:         x,
		Y:         y,
		ChannelID: channelID,
		CreatedAt: time.Now(),
	}
}

// State is where a kingdom's in-flight request is in the automation pipeline.
type State string

const (
	Idle                State = "idle"
	Dispatching         State = "dispatching"
	AwaitingCheckpoint  State = "awaitingCheckpoint"
	AwaitingTitleAction State = "awaitingTitleAction"
	AwaitingCompletion  State = "awaitingCompletion"
)
