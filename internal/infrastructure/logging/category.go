package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	Internal        Category = "Internal"
	Postgres        Category = "Postgres"
	MongoDB         Category = "MongoDB"
	Redis           Category = "Redis"
	RabbitMQ        Category = "RabbitMQ"
	WebSocket       Category = "WebSocket"
	Audit           Category = "Audit"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Audit
	TenantLookup SubCategory = "TenantLookup"
	Persist      SubCategory = "Persist"
	Broadcast    SubCategory = "Broadcast"
	Dispatch     SubCategory = "Dispatch"

	// WebSocket
	Connection SubCategory = "Connection"
	Partition  SubCategory = "Partition"

	// Storage
	Migration SubCategory = "Migration"
	Select    SubCategory = "Select"
	Insert    SubCategory = "Insert"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	BodySize     ExtraKey = "BodySize"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	ErrorMessage ExtraKey = "ErrorMessage"

	PartitionKey ExtraKey = "partition"
	EntityType   ExtraKey = "entityType"
	EntityID     ExtraKey = "entityId"
	ActorID      ExtraKey = "actorId"
	Action       ExtraKey = "action"
	ConnectionID ExtraKey = "connectionId"
	Delivered    ExtraKey = "delivered"
)
