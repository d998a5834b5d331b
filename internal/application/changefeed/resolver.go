package changefeed

import (
	"context"
	"errors"
	"strings"

	"github.com/hilthontt/tenantwire/internal/domain"
)

var errEmptyTenant = errors.New("tenant lookup returned an empty tenant")

// Resolver maps an actor to the partition its audit row and broadcast
// belong to.
type Resolver struct {
	anonymousActor string
}

func NewResolver(anonymousActor string) *Resolver {
	if strings.TrimSpace(anonymousActor) == "" {
		anonymousActor = domain.ExternalActor
	}
	return &Resolver{anonymousActor: anonymousActor}
}

// Resolve walks the chain override -> anonymous -> lookup -> actor id ->
// global. ok is false only for the anonymous actor without an override.
// A non-nil error is always a LookupFailure and the returned partition is
// still usable.
func (r *Resolver) Resolve(ctx context.Context, lookup domain.TenantLookup, actorID, override string) (string, bool, error) {
	if partition := strings.TrimSpace(override); partition != "" {
		return partition, true, nil
	}

	actorID = strings.TrimSpace(actorID)
	if actorID == r.anonymousActor {
		return "", false, nil
	}

	if lookup == nil {
		return r.fallback(actorID, domain.ErrNoStore)
	}

	tenantID, err := lookup.Lookup(ctx, actorID)
	if err != nil {
		return r.fallback(actorID, err)
	}

	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return r.fallback(actorID, errEmptyTenant)
	}

	return tenantID, true, nil
}

func (r *Resolver) fallback(actorID string, cause error) (string, bool, error) {
	partition := coercePartition(actorID)
	return partition, true, domain.NewAuditError(domain.LookupFailure, partition, cause)
}

func coercePartition(p string) string {
	if p = strings.TrimSpace(p); p == "" {
		return domain.GlobalPartition
	}
	return p
}
