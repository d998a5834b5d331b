package domain

import "context"

const (
	// ExternalActor is the actor id used for anonymous callers such as the
	// public order page.
	ExternalActor = "EXTERNAL_CLIENT"

	GlobalPartition = "global"
)

type TenantLookup interface {
	Lookup(ctx context.Context, actorID string) (string, error)
}

type TenantLookupFunc func(ctx context.Context, actorID string) (string, error)

func (f TenantLookupFunc) Lookup(ctx context.Context, actorID string) (string, error) {
	return f(ctx, actorID)
}
