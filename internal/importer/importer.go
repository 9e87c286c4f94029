// Package importer reconciles rows of a staged table against the record
// store: it resolves named references, decides per row whether to create or
// update an issue, expands multi-valued cells into further writes, and
// keeps going when a row fails.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/two-pack/redmine-importer/internal/csvtable"
	"github.com/two-pack/redmine-importer/internal/logging"
	"github.com/two-pack/redmine-importer/internal/session"
	"github.com/two-pack/redmine-importer/internal/storage"
	"github.com/two-pack/redmine-importer/internal/telemetry"
	"github.com/two-pack/redmine-importer/internal/types"
)

const scopeName = "github.com/two-pack/redmine-importer/importer"

// SessionRetention is how long a staged table survives before the purge
// that follows every run removes it.
const SessionRetention = 72 * time.Hour

// Importer stages tables and runs imports against a store.
type Importer struct {
	store      storage.Store
	sessions   session.Store
	now        func() time.Time
	retryDelay time.Duration
	retention  time.Duration
}

// Option customizes an Importer.
type Option func(*Importer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(i *Importer) { i.now = now }
}

// WithRetryDelay sets the pause before retrying a conflicting write.
func WithRetryDelay(d time.Duration) Option {
	return func(i *Importer) { i.retryDelay = d }
}

// WithRetention overrides SessionRetention.
func WithRetention(d time.Duration) Option {
	return func(i *Importer) { i.retention = d }
}

// New returns an Importer.
func New(store storage.Store, sessions session.Store, opts ...Option) *Importer {
	imp := &Importer{
		store:      store,
		sessions:   sessions,
		now:        time.Now,
		retryDelay: 100 * time.Millisecond,
		retention:  SessionRetention,
	}
	for _, o := range opts {
		o(imp)
	}
	return imp
}

// RunRequest asks to import the table staged by Actor.
type RunRequest struct {
	Actor   *types.User
	Token   string // Preview.Token of the staged table
	Options Options
}

// Run imports the actor's staged table. Rows are processed in order and a
// failing row does not stop the run. A malformed table aborts with a nil
// Result and leaves the staged table in place; an ambiguous relation
// target stops the run early, returning the partial Result and an error.
func (imp *Importer) Run(ctx context.Context, req RunRequest) (*Result, error) {
	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"batch_id": uuid.NewString(),
		"actor":    req.Actor.Login,
	})
	ctx, span := telemetry.Tracer(scopeName).Start(ctx, "importer.Run")
	defer span.End()

	sess, err := imp.sessions.Get(ctx, req.Actor.ID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrNoImportInProgress
	}
	if err != nil {
		return nil, err
	}
	if req.Token != sess.Token() {
		return nil, ErrImportAlreadyInProgress
	}

	b, tbl, err := imp.prepare(ctx, req, sess)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("rmi.filename", sess.Filename))
	log.WithField("filename", sess.Filename).Info("import started")

	rows, _ := telemetry.Meter(scopeName).Int64Counter("rmi.import.rows",
		metric.WithDescription("Rows processed by outcome"),
	)

	var fatal error
	for {
		row, err := tbl.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			log.WithError(err).Error("import aborted")
			return nil, fmt.Errorf("import aborted after %d rows: %w", b.result.Total(), err)
		}

		rctx, rspan := telemetry.Tracer(scopeName).Start(ctx, "importer.row")
		rspan.SetAttributes(attribute.Int("rmi.row", row.Index))
		out := b.processRow(rctx, row)
		rspan.SetAttributes(attribute.String("rmi.outcome", out.kind.String()))
		rspan.End()

		b.result.record(row, out)
		rows.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", out.kind.String())))
		log.WithFields(logrus.Fields{"row": row.Index, "outcome": out.kind.String()}).Debug("row processed")

		if out.fatal != nil {
			fatal = fmt.Errorf("row %d: %w: %w", row.Index, ErrAmbiguousRelation, out.fatal)
			b.result.Aborted = fatal.Error()
			break
		}
	}

	imp.finish(ctx, log, req.Actor.ID)
	log.WithFields(logrus.Fields{
		"handled": b.result.Handled,
		"updated": b.result.Updated,
		"skipped": b.result.Skipped,
		"failed":  b.result.Failed,
	}).Info("import finished")
	if fatal != nil {
		span.SetStatus(codes.Error, fatal.Error())
	}
	return b.result, fatal
}

// prepare validates the run and builds its batch.
func (imp *Importer) prepare(ctx context.Context, req RunRequest, sess *session.Session) (*batch, *csvtable.Table, error) {
	opts := req.Options
	project, err := imp.store.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("default project: %w", err)
	}
	customFields, err := imp.store.ListCustomFields(ctx, project.ID)
	if err != nil {
		return nil, nil, err
	}
	p, err := compile(opts, customFields)
	if err != nil {
		return nil, nil, err
	}

	dialect, err := sess.Dialect()
	if err != nil {
		return nil, nil, err
	}
	tbl, err := csvtable.Open(strings.NewReader(sess.CSVData), dialect)
	if errors.Is(err, csvtable.ErrEmpty) {
		return nil, nil, ErrEmptyTable
	}
	if err != nil {
		return nil, nil, err
	}
	if err := p.checkHeaders(tbl.Headers, opts); err != nil {
		return nil, nil, err
	}

	spentOn := opts.SpentOn
	if spentOn.IsZero() {
		y, m, d := imp.now().Date()
		spentOn = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	b := &batch{
		store:      imp.store,
		opts:       opts,
		plan:       p,
		write:      storage.WriteOptions{SuppressNotifications: opts.DisableNotifications},
		resolver:   newResolver(imp.store, opts),
		project:    project,
		actor:      req.Actor,
		spentOn:    spentOn,
		retryDelay: imp.retryDelay,
		result:     newResult(tbl.Headers),
	}
	b.locator = &locator{
		store:    imp.store,
		key:      p.unique,
		cache:    newUniqueCache(),
		openOnly: !opts.AllowClosedIssuesUpdate,
	}
	return b, tbl, nil
}

// finish drops the consumed staged table and purges stale ones.
func (imp *Importer) finish(ctx context.Context, log *logrus.Entry, actorID int64) {
	if err := imp.sessions.Delete(ctx, actorID); err != nil {
		log.WithError(err).Warn("failed to delete staged import")
	}
	if _, err := imp.PurgeSessions(ctx); err != nil {
		log.WithError(err).Warn("failed to purge stale imports")
	}
}

// PurgeSessions deletes staged tables older than the retention window.
func (imp *Importer) PurgeSessions(ctx context.Context) (int, error) {
	return imp.sessions.PurgeBefore(ctx, imp.now().Add(-imp.retention))
}
