package ws

import "github.com/hilthontt/tenantwire/internal/domain"

// Envelope is every frame on the wire, in both directions.
type Envelope struct {
	Type      string `json:"type"`
	Partition string `json:"partition,omitempty"`
	Data      any    `json:"data,omitempty"`
}

type PartitionChangedPayload struct {
	MemberCount int `json:"memberCount"`
}

type CurrentMembersPayload struct {
	Members []domain.Member `json:"members"`
}

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Retry   bool   `json:"retry,omitempty"`
}

func NewDataChanged(partition string, evt domain.ChangeEvent) *Envelope {
	return &Envelope{
		Type:      DataChanged,
		Partition: partition,
		Data:      evt,
	}
}

func NewPartitionChanged(partition string, memberCount int) *Envelope {
	return &Envelope{
		Type:      PartitionChanged,
		Partition: partition,
		Data:      PartitionChangedPayload{MemberCount: memberCount},
	}
}

func NewCurrentMembers(partition string, members []domain.Member) *Envelope {
	if members == nil {
		members = []domain.Member{}
	}
	return &Envelope{
		Type:      CurrentMembers,
		Partition: partition,
		Data:      CurrentMembersPayload{Members: members},
	}
}

func NewError(partition, code, message string) *Envelope {
	return &Envelope{
		Type:      ErrorEvent,
		Partition: partition,
		Data: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}

func NewRateLimited(partition string) *Envelope {
	return &Envelope{
		Type:      ErrorEvent,
		Partition: partition,
		Data: ErrorPayload{
			Code:    CodeRateLimited,
			Message: "too many commands",
			Retry:   true,
		},
	}
}
