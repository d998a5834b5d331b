package partitions

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/hilthontt/tenantwire/internal/infrastructure/json"
	"github.com/hilthontt/tenantwire/internal/infrastructure/logging"
	"github.com/hilthontt/tenantwire/internal/persistence/db"
	"github.com/hilthontt/tenantwire/internal/presentation/utils"
)

const PartitionParam = "partition"

var (
	errForbidden      = errors.New("partition is not accessible to the caller")
	errInvalidLimit   = errors.New("limit must be a positive integer")
	errInvalidBefore  = errors.New("before must be an RFC3339 timestamp")
	errCursorOrBefore = errors.New("cursor and before cannot be combined")
	errAuditNotStored = errors.New("audit store unavailable")
)

type PartitionResolver interface {
	PartitionOf(ctx context.Context, exec db.QueryExecutor, actorID string) (string, bool)
}

type AuditStores interface {
	AuditStore(exec db.QueryExecutor) domain.AuditRepository
}

type MemberLister interface {
	MembersOf(partition string) []domain.Member
}

type Config struct {
	DefaultPageSize uint64
	MaxPageSize     uint64
}

type Handler struct {
	resolver PartitionResolver
	stores   AuditStores
	members  MemberLister
	exec     db.QueryExecutor
	cfg      Config
	logger   logging.Logger
}

// NewHandler reads audit rows and tenant lookups through exec, which is nil
// when no postgres pool is configured.
func NewHandler(
	resolver PartitionResolver,
	stores AuditStores,
	members MemberLister,
	exec db.QueryExecutor,
	cfg Config,
	logger logging.Logger,
) *Handler {
	if cfg.DefaultPageSize == 0 {
		cfg.DefaultPageSize = 50
	}
	if cfg.MaxPageSize == 0 {
		cfg.MaxPageSize = 500
	}
	return &Handler{
		resolver: resolver,
		stores:   stores,
		members:  members,
		exec:     exec,
		cfg:      cfg,
		logger:   logger,
	}
}

// Authorize lets a request through only when the caller's own partition is
// the one named in the path. The resolver must not grant partitions it only
// guessed after a failed tenant lookup.
func (h *Handler) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		partition := chi.URLParam(r, PartitionParam)
		actorID := utils.ActorID(r)

		own, ok := h.resolver.PartitionOf(r.Context(), h.exec, actorID)
		if !ok || own != partition {
			h.logger.Warn(logging.Validation, logging.Partition, "partition access denied", map[logging.ExtraKey]any{
				logging.ActorID:      actorID,
				logging.PartitionKey: partition,
			})
			json.WriteError(w, http.StatusForbidden, errForbidden, errForbidden.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ListAuditHandler pages through the partition's audit trail, newest first.
// Query: entityType, entityId, actorId, cursor (from nextCursor) or before
// (RFC3339), limit.
func (h *Handler) ListAuditHandler(w http.ResponseWriter, r *http.Request) {
	partition := chi.URLParam(r, PartitionParam)

	filter, err := h.parseFilter(r, partition)
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}

	store := h.stores.AuditStore(h.exec)
	if store == nil {
		json.WriteError(w, http.StatusServiceUnavailable, errAuditNotStored, errAuditNotStored.Error())
		return
	}

	records, err := store.ListByPartition(r.Context(), filter)
	if err != nil {
		h.logger.Error(logging.Audit, logging.Select, "list audit records failed", map[logging.ExtraKey]any{
			logging.PartitionKey: partition,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err)
		return
	}
	if records == nil {
		records = []domain.AuditRecord{}
	}

	resp := auditListResponse{Partition: partition, Records: records}
	if uint64(len(records)) == filter.Limit {
		resp.NextCursor = encodeCursor(records[len(records)-1])
	}

	json.Write(w, http.StatusOK, resp)
}

func (h *Handler) ListMembersHandler(w http.ResponseWriter, r *http.Request) {
	partition := chi.URLParam(r, PartitionParam)

	members := h.members.MembersOf(partition)
	if members == nil {
		members = []domain.Member{}
	}

	json.Write(w, http.StatusOK, membersResponse{Partition: partition, Members: members})
}

func (h *Handler) parseFilter(r *http.Request, partition string) (domain.AuditFilter, error) {
	q := r.URL.Query()
	filter := domain.AuditFilter{
		PartitionKey: partition,
		EntityType:   q.Get("entityType"),
		EntityID:     q.Get("entityId"),
		ActorID:      q.Get("actorId"),
		Limit:        h.cfg.DefaultPageSize,
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || limit == 0 {
			return filter, errInvalidLimit
		}
		filter.Limit = min(limit, h.cfg.MaxPageSize)
	}

	cursor, before := q.Get("cursor"), q.Get("before")
	switch {
	case cursor != "" && before != "":
		return filter, errCursorOrBefore
	case cursor != "":
		c, err := decodeCursor(cursor)
		if err != nil {
			return filter, err
		}
		filter.Before = c
	case before != "":
		ts, err := time.Parse(time.RFC3339Nano, before)
		if err != nil {
			return filter, errInvalidBefore
		}
		filter.Before = domain.AuditCursor{Timestamp: ts}
	}

	return filter, nil
}
