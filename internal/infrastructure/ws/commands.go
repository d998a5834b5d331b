package ws

import (
	"errors"
	"strings"

	"github.com/hilthontt/tenantwire/internal/infrastructure/logging"
)

// HandleCommand applies one inbound command from c.
func (r *Registry) HandleCommand(c *Client, cmd Envelope) {
	cmd.Partition = strings.TrimSpace(cmd.Partition)

	switch cmd.Type {
	case JoinCommand:
		if _, err := r.Join(c, cmd.Partition); err != nil {
			code := CodeJoinFailed
			if errors.Is(err, ErrEmptyPartition) {
				code = CodeBadRequest
			}
			r.SendTo(c, NewError(cmd.Partition, code, err.Error()))
		}

	case LeaveCommand:
		r.Leave(c, cmd.Partition)

	case RequestCurrentMembers:
		if cmd.Partition == "" {
			r.SendTo(c, NewError("", CodeBadRequest, ErrEmptyPartition.Error()))
			return
		}
		r.SendTo(c, NewCurrentMembers(cmd.Partition, r.MembersOf(cmd.Partition)))

	default:
		r.logger.Debug(logging.WebSocket, logging.Connection, "unknown command", map[logging.ExtraKey]any{
			logging.ConnectionID: c.ID,
			"type":               cmd.Type,
		})
		r.SendTo(c, NewError(cmd.Partition, CodeUnknownCommand, "unknown command "+cmd.Type))
	}
}
