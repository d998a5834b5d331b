package ws

// Inbound commands.
const (
	JoinCommand           = "join"
	LeaveCommand          = "leave"
	RequestCurrentMembers = "request-current-members"
)

// Outbound events.
const (
	DataChanged      = "data-changed"
	PartitionChanged = "partition-changed"
	CurrentMembers   = "current-members"
	ErrorEvent       = "error"
)

// Error codes carried by ErrorEvent.
const (
	CodeBadRequest     = "BAD_REQUEST"
	CodeUnknownCommand = "UNKNOWN_COMMAND"
	CodeJoinFailed     = "JOIN_FAILED"
	CodeRateLimited    = "RATE_LIMITED"
)
