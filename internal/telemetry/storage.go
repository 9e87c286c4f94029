package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/two-pack/redmine-importer/internal/storage"
	"github.com/two-pack/redmine-importer/internal/types"
)

const storageScopeName = "github.com/two-pack/redmine-importer/storage"

// InstrumentedStore wraps storage.Store with OTel tracing and metrics for
// issue queries and writes. Other methods pass straight through.
type InstrumentedStore struct {
	storage.Store
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapStore returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is.
func WrapStore(s storage.Store) storage.Store {
	if !Enabled() {
		return s
	}
	return newInstrumentedStore(s)
}

func newInstrumentedStore(s storage.Store) *InstrumentedStore {
	m := Meter(storageScopeName)
	ops, _ := m.Int64Counter("rmi.storage.operations",
		metric.WithDescription("Total storage operations executed"),
	)
	dur, _ := m.Float64Histogram("rmi.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("rmi.storage.errors",
		metric.WithDescription("Total storage operation errors"),
	)
	return &InstrumentedStore{
		Store:  s,
		tracer: Tracer(storageScopeName),
		ops:    ops,
		dur:    dur,
		errs:   errs,
	}
}

// op starts a span and records a metric for the named storage operation.
func (s *InstrumentedStore) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "storage."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStore) done(ctx context.Context, span trace.Span, start time.Time, name string, err error) {
	attrs := metric.WithAttributes(attribute.String("db.operation", name))
	s.dur.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, attrs)
	}
	span.End()
}

func (s *InstrumentedStore) GetIssue(ctx context.Context, id int64) (*types.Issue, error) {
	ctx, span, start := s.op(ctx, "GetIssue", attribute.Int64("rmi.issue.id", id))
	issue, err := s.Store.GetIssue(ctx, id)
	s.done(ctx, span, start, "GetIssue", err)
	return issue, err
}

func (s *InstrumentedStore) FindIssues(ctx context.Context, filter storage.IssueFilter) ([]*types.Issue, error) {
	ctx, span, start := s.op(ctx, "FindIssues",
		attribute.String("rmi.filter.column", filter.Column),
		attribute.Int64("rmi.filter.custom_field", filter.CustomFieldID),
	)
	issues, err := s.Store.FindIssues(ctx, filter)
	span.SetAttributes(attribute.Int("rmi.result.count", len(issues)))
	s.done(ctx, span, start, "FindIssues", err)
	return issues, err
}

func (s *InstrumentedStore) CreateIssue(ctx context.Context, issue *types.Issue, opts storage.WriteOptions) error {
	ctx, span, start := s.op(ctx, "CreateIssue",
		attribute.Int64("rmi.project.id", issue.ProjectID),
		attribute.Bool("rmi.notify", !opts.SuppressNotifications),
	)
	err := s.Store.CreateIssue(ctx, issue, opts)
	s.done(ctx, span, start, "CreateIssue", err)
	return err
}

func (s *InstrumentedStore) UpdateIssue(ctx context.Context, issue *types.Issue, journal *types.Journal, opts storage.WriteOptions) error {
	ctx, span, start := s.op(ctx, "UpdateIssue",
		attribute.Int64("rmi.issue.id", issue.ID),
		attribute.Bool("rmi.notify", !opts.SuppressNotifications),
	)
	err := s.Store.UpdateIssue(ctx, issue, journal, opts)
	s.done(ctx, span, start, "UpdateIssue", err)
	return err
}

func (s *InstrumentedStore) CreateRelation(ctx context.Context, rel *types.Relation) error {
	ctx, span, start := s.op(ctx, "CreateRelation", attribute.String("rmi.relation.type", string(rel.Type)))
	err := s.Store.CreateRelation(ctx, rel)
	s.done(ctx, span, start, "CreateRelation", err)
	return err
}

func (s *InstrumentedStore) CreateTimeEntry(ctx context.Context, entry *types.TimeEntry, opts storage.WriteOptions) error {
	ctx, span, start := s.op(ctx, "CreateTimeEntry", attribute.Int64("rmi.issue.id", entry.IssueID))
	err := s.Store.CreateTimeEntry(ctx, entry, opts)
	s.done(ctx, span, start, "CreateTimeEntry", err)
	return err
}

func (s *InstrumentedStore) CreateVersion(ctx context.Context, v *types.Version) error {
	ctx, span, start := s.op(ctx, "CreateVersion", attribute.Int64("rmi.project.id", v.ProjectID))
	err := s.Store.CreateVersion(ctx, v)
	s.done(ctx, span, start, "CreateVersion", err)
	return err
}

func (s *InstrumentedStore) CreateCategory(ctx context.Context, c *types.Category) error {
	ctx, span, start := s.op(ctx, "CreateCategory", attribute.Int64("rmi.project.id", c.ProjectID))
	err := s.Store.CreateCategory(ctx, c)
	s.done(ctx, span, start, "CreateCategory", err)
	return err
}
