package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/hilthontt/tenantwire/internal/persistence/db"
)

const tenantMembershipsTable = "tenant_memberships"

// TenantDirectory maps actors to tenants using tenant_memberships.
type TenantDirectory struct {
	exec db.QueryExecutor
}

func NewTenantDirectory(exec db.QueryExecutor) *TenantDirectory {
	return &TenantDirectory{exec: exec}
}

func (d *TenantDirectory) Lookup(ctx context.Context, actorID string) (string, error) {
	query, args, err := psql.Select("tenant_id").
		From(tenantMembershipsTable).
		Where(sq.Eq{"actor_id": actorID}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build tenant lookup: %w", err)
	}

	var tenantID string
	if err := d.exec.QueryRow(ctx, query, args...).Scan(&tenantID); err != nil {
		return "", mapError(err, "tenant_membership", actorID, domain.ErrTenantNotFound)
	}

	return tenantID, nil
}

// Assign upserts the tenant of an actor.
func (d *TenantDirectory) Assign(ctx context.Context, actorID, tenantID string) error {
	actorID = strings.TrimSpace(actorID)
	tenantID = strings.TrimSpace(tenantID)
	if actorID == "" || tenantID == "" {
		return fmt.Errorf("tenant membership: %w", domain.ErrInvalidInput)
	}

	query, args, err := psql.Insert(tenantMembershipsTable).
		Columns("actor_id", "tenant_id", "updated_at").
		Values(actorID, tenantID, time.Now().UTC()).
		Suffix("ON CONFLICT (actor_id) DO UPDATE SET tenant_id = EXCLUDED.tenant_id, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build tenant upsert: %w", err)
	}

	if _, err := d.exec.Exec(ctx, query, args...); err != nil {
		return mapError(err, "tenant_membership", actorID, nil)
	}

	return nil
}
