package domain

import "time"

// Member is one live connection inside a partition.
type Member struct {
	ConnectionID string    `json:"connectionId"`
	ActorID      string    `json:"actorId"`
	JoinedAt     time.Time `json:"joinedAt"`
}

func NewMember(connectionID, actorID string) Member {
	return Member{
		ConnectionID: connectionID,
		ActorID:      actorID,
		JoinedAt:     time.Now().UTC(),
	}
}
