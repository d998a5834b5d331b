package changefeed

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/hilthontt/tenantwire/internal/infrastructure/logging"
	"github.com/hilthontt/tenantwire/internal/infrastructure/tracing"
	"github.com/hilthontt/tenantwire/internal/persistence/db"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Change is what a business operation reports after its primary commit.
type Change struct {
	ActorID           string        `json:"actorId"`
	Action            domain.Action `json:"action"`
	EntityType        string        `json:"entityType"`
	EntityID          string        `json:"entityId"`
	Details           string        `json:"details,omitempty"`
	PreviousState     any           `json:"previousState,omitempty"`
	Changes           any           `json:"changes,omitempty"`
	PartitionOverride string        `json:"partitionOverride,omitempty"`
}

// StoreBackend binds audit stores and tenant lookups to the executor of a
// single call, which may be a pool or an open transaction.
type StoreBackend interface {
	AuditStore(exec db.QueryExecutor) domain.AuditRepository
	TenantLookup(exec db.QueryExecutor) domain.TenantLookup
}

type Notifier struct {
	backend     StoreBackend
	resolver    *Resolver
	recorder    *Recorder
	broadcaster *Broadcaster
	logger      logging.Logger
	metrics     *Metrics
	tracer      trace.Tracer
}

type Option func(*Notifier)

func WithAnonymousActor(actorID string) Option {
	return func(n *Notifier) { n.resolver = NewResolver(actorID) }
}

func WithMetrics(m *Metrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

func WithRecorder(r *Recorder) Option {
	return func(n *Notifier) { n.recorder = r }
}

func NewNotifier(backend StoreBackend, logger logging.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		backend:     backend,
		resolver:    NewResolver(domain.ExternalActor),
		recorder:    NewRecorder(),
		broadcaster: NewBroadcaster(logger),
		logger:      logger,
		tracer:      tracing.GetTracer("tenantwire/changefeed"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// RecordAndBroadcast records change and notifies its partition. It never
// fails and never panics: every failure is logged by kind and dropped.
func (n *Notifier) RecordAndBroadcast(ctx context.Context, exec db.QueryExecutor, conn ConnectionLayer, change Change) {
	defer func() {
		if p := recover(); p != nil {
			n.logger.Error(logging.Audit, logging.Persist, "record and broadcast panicked", map[logging.ExtraKey]any{
				logging.ErrorMessage: fmt.Sprint(p),
				logging.ActorID:      change.ActorID,
				logging.EntityType:   change.EntityType,
				"stack":              string(debug.Stack()),
			})
		}
	}()

	_, err := n.recordAndBroadcast(ctx, exec, conn, change)
	n.logFailures(change, err)
}

// PartitionOf resolves the partition whose reads actorID may see. Unlike
// RecordAndBroadcast it grants no actor-id fallback after a failed lookup;
// only a deployment without any tenant directory maps actors to their id.
func (n *Notifier) PartitionOf(ctx context.Context, exec db.QueryExecutor, actorID string) (string, bool) {
	partition, ok, err := n.resolver.Resolve(ctx, n.tenantLookup(exec), actorID, "")
	if err == nil || errors.Is(err, domain.ErrNoStore) {
		return partition, ok
	}

	n.logger.Warn(logging.Audit, logging.TenantLookup, "tenant lookup failed, partition access denied", map[logging.ExtraKey]any{
		logging.ActorID:      actorID,
		logging.ErrorMessage: err.Error(),
	})
	return "", false
}

func (n *Notifier) recordAndBroadcast(ctx context.Context, exec db.QueryExecutor, conn ConnectionLayer, change Change) (domain.AuditRecord, error) {
	ctx, span := n.tracer.Start(ctx, "changefeed.RecordAndBroadcast", trace.WithAttributes(
		attribute.String("actor.id", change.ActorID),
		attribute.String("entity.type", change.EntityType),
		attribute.String("entity.id", change.EntityID),
		attribute.String("audit.action", string(change.Action)),
	))
	defer span.End()

	var errs []error

	partition, ok, err := n.resolve(ctx, exec, change)
	if err != nil {
		errs = append(errs, err)
	}

	rec := domain.AuditRecord{
		ActorID:       change.ActorID,
		Action:        change.Action,
		EntityType:    change.EntityType,
		EntityID:      change.EntityID,
		Details:       change.Details,
		PreviousState: change.PreviousState,
		Changes:       change.Changes,
		PartitionKey:  partition,
	}
	if !ok {
		rec.PartitionKey = domain.GlobalPartition
	}
	span.SetAttributes(attribute.String("partition", rec.PartitionKey))

	if err := n.record(ctx, exec, &rec); err != nil {
		errs = append(errs, err)
	}

	if ok {
		if err := n.broadcast(ctx, conn, partition, domain.NewChangeEvent(&rec)); err != nil {
			errs = append(errs, err)
		}
	} else {
		n.metrics.observeBroadcast(resultSkipped)
	}

	joined := errors.Join(errs...)
	if joined != nil {
		span.SetStatus(codes.Error, joined.Error())
	}

	return rec, joined
}

func (n *Notifier) resolve(ctx context.Context, exec db.QueryExecutor, change Change) (string, bool, error) {
	ctx, span := n.tracer.Start(ctx, "changefeed.Resolve")
	defer span.End()

	partition, ok, err := n.resolver.Resolve(ctx, n.tenantLookup(exec), change.ActorID, change.PartitionOverride)
	if err != nil {
		n.metrics.incLookupFallback()
		span.RecordError(err)
	}

	return partition, ok, err
}

func (n *Notifier) tenantLookup(exec db.QueryExecutor) domain.TenantLookup {
	if n.backend == nil {
		return nil
	}
	return n.backend.TenantLookup(exec)
}

func (n *Notifier) record(ctx context.Context, exec db.QueryExecutor, rec *domain.AuditRecord) error {
	ctx, span := n.tracer.Start(ctx, "changefeed.Record")
	defer span.End()

	var store domain.AuditRepository
	if n.backend != nil {
		store = n.backend.AuditStore(exec)
	}

	err := n.recorder.Record(ctx, store, rec)
	n.metrics.observeAudit(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit record not persisted")
	}

	return err
}

func (n *Notifier) broadcast(ctx context.Context, conn ConnectionLayer, partition string, evt domain.ChangeEvent) error {
	ctx, span := n.tracer.Start(ctx, "changefeed.Broadcast")
	defer span.End()

	if conn == nil {
		n.metrics.observeBroadcast(resultSkipped)
	}

	err := n.broadcaster.Broadcast(ctx, conn, partition, evt)
	switch {
	case err != nil:
		n.metrics.observeBroadcast(resultFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "broadcast failed")
	case conn != nil:
		n.metrics.observeBroadcast(resultOK)
	}

	return err
}

func (n *Notifier) logFailures(change Change, err error) {
	for _, ae := range domain.AuditErrors(err) {
		extra := map[logging.ExtraKey]any{
			logging.PartitionKey: ae.Partition,
			logging.ActorID:      change.ActorID,
			logging.EntityType:   change.EntityType,
			logging.EntityID:     change.EntityID,
			logging.ErrorMessage: ae.Err.Error(),
		}

		switch ae.Kind {
		case domain.LookupFailure:
			n.logger.Warn(logging.Audit, logging.TenantLookup, "tenant lookup failed, using actor partition", extra)
		case domain.PersistenceFailure:
			n.logger.Error(logging.Audit, logging.Persist, "audit record not persisted", extra)
		case domain.BroadcastFailure:
			n.logger.Error(logging.Audit, logging.Broadcast, "change broadcast failed", extra)
		}
	}
}
