package changes

import (
	"errors"
	"strings"

	"github.com/hilthontt/tenantwire/internal/domain"
)

type createChangeRequest struct {
	ActorID           string        `json:"actorId"`
	Action            domain.Action `json:"action"`
	EntityType        string        `json:"entityType"`
	EntityID          string        `json:"entityId"`
	Details           string        `json:"details"`
	PreviousState     any           `json:"previousState"`
	Changes           any           `json:"changes"`
	PartitionOverride string        `json:"partitionOverride"`
}

func (r createChangeRequest) validate() error {
	var errs []error
	if !r.Action.Valid() {
		errs = append(errs, errors.New("action must be one of CREATE, UPDATE, DELETE, STATUS_CHANGE"))
	}
	if strings.TrimSpace(r.EntityType) == "" {
		errs = append(errs, errors.New("entityType is required"))
	}
	if strings.TrimSpace(r.EntityID) == "" {
		errs = append(errs, errors.New("entityId is required"))
	}
	return errors.Join(errs...)
}

type createChangeResponse struct {
	Status string `json:"status"`
}
