package dbsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-booking/internal/logger"
)

var (
	// ErrSyncInProgress means another process already holds the sync lock.
	ErrSyncInProgress = errors.New("reconciliation already in progress")
	// ErrUnknownApp means the --app filter matched no registered tables.
	ErrUnknownApp = errors.New("unknown app")
)

// Options control a reconciliation run.
type Options struct {
	DryRun bool
	App    string
}

// TableReport summarizes one table's reconciliation.
type TableReport struct {
	Table     string  `json:"table"`
	Missing   int     `json:"missing"`
	Copied    int     `json:"copied"`
	Skipped   int     `json:"skipped"`
	SampleIDs []int64 `json:"sample_ids,omitempty"`
}

// Report summarizes a full run.
type Report struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	DryRun     bool          `json:"dry_run"`
	Tables     []TableReport `json:"tables"`
	Copied     int           `json:"copied"`
	Skipped    int           `json:"skipped"`
}

// RunStatus records the outcome of the last triggered run, so recovery-edge
// reconciliation is observable instead of fire-and-forget.
type RunStatus struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Running    bool      `json:"running"`
	Copied     int       `json:"copied"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
}

// Syncer copies rows that exist on the mirror but not on the primary, table
// by table, then realigns the primary's id sequences. Used after a failover
// window, once the primary is reachable again.
type Syncer struct {
	Primary *bun.DB
	Mirror  *bun.DB
	Lock    *Lock
	Logger  *logger.Logger

	mu      sync.Mutex
	lastRun RunStatus
}

func NewSyncer(primary, mirror *bun.DB, lock *Lock, log *logger.Logger) *Syncer {
	return &Syncer{
		Primary: primary,
		Mirror:  mirror,
		Lock:    lock,
		Logger:  log,
	}
}

// Trigger starts a background reconciliation. It returns immediately; a run
// already holding the lock makes this a no-op. Implements dbrouter.Reconciler.
func (s *Syncer) Trigger() {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.Logger.Error("DB_SYNC", fmt.Sprintf("reconciliation panicked: %v", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.Lock.TTL)
		defer cancel()

		s.mu.Lock()
		prev := s.lastRun
		s.lastRun = RunStatus{StartedAt: time.Now(), Running: true}
		s.mu.Unlock()

		report, err := s.Run(ctx, Options{})

		s.mu.Lock()
		if errors.Is(err, ErrSyncInProgress) {
			// Another run holds the lock; keep its status visible instead of
			// clobbering it with this no-op.
			s.lastRun = prev
		} else {
			s.lastRun.Running = false
			s.lastRun.FinishedAt = time.Now()
			if report != nil {
				s.lastRun.Copied = report.Copied
				s.lastRun.Skipped = report.Skipped
			}
			if err != nil {
				s.lastRun.Error = err.Error()
			}
		}
		s.mu.Unlock()

		switch {
		case errors.Is(err, ErrSyncInProgress):
			s.Logger.LogSync("ALL", "trigger skipped, another run holds the lock")
		case err != nil:
			s.Logger.Error("DB_SYNC", fmt.Sprintf("triggered reconciliation failed: %v", err))
		default:
			s.Logger.LogSync("ALL", fmt.Sprintf("triggered reconciliation done: %d copied, %d skipped",
				report.Copied, report.Skipped))
		}
	}()
}

// LastRun returns the status of the most recent triggered run.
func (s *Syncer) LastRun() RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// CheckConnectivity verifies both replicas answer before a run starts.
func (s *Syncer) CheckConnectivity(ctx context.Context) error {
	if err := s.Primary.PingContext(ctx); err != nil {
		return fmt.Errorf("primary not reachable: %w", err)
	}
	if err := s.Mirror.PingContext(ctx); err != nil {
		return fmt.Errorf("mirror not reachable: %w", err)
	}
	return nil
}

// Run performs one reconciliation pass under the cluster-wide lock.
func (s *Syncer) Run(ctx context.Context, opts Options) (*Report, error) {
	tables := TablesForApp(opts.App)
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownApp, opts.App)
	}

	if err := s.CheckConnectivity(ctx); err != nil {
		return nil, err
	}

	ok, err := s.Lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync lock: %w", err)
	}
	if !ok {
		return nil, ErrSyncInProgress
	}
	defer func() {
		if err := s.Lock.Release(context.Background()); err != nil {
			s.Logger.Warn("DB_SYNC", fmt.Sprintf("failed to release sync lock (TTL will expire it): %v", err))
		}
	}()

	report := &Report{StartedAt: time.Now(), DryRun: opts.DryRun}

	for _, t := range tables {
		tr, err := s.syncTable(ctx, t, opts.DryRun)
		if err != nil {
			// A whole-table failure is logged and skipped; the rest of the
			// batch still runs.
			s.Logger.Error("DB_SYNC", fmt.Sprintf("table %s failed: %v", t.Name, err))
			report.Skipped++
			continue
		}
		report.Tables = append(report.Tables, tr)
		report.Copied += tr.Copied
		report.Skipped += tr.Skipped
	}

	if !opts.DryRun && report.Copied > 0 {
		s.updateSequences(ctx, tables)
	}

	report.FinishedAt = time.Now()
	return report, nil
}

func (s *Syncer) syncTable(ctx context.Context, t Table, dryRun bool) (TableReport, error) {
	tr := TableReport{Table: t.Name}

	primaryIDs, err := s.tableIDs(ctx, s.Primary, t)
	if err != nil {
		return tr, fmt.Errorf("reading primary ids: %w", err)
	}
	mirrorIDs, err := s.tableIDs(ctx, s.Mirror, t)
	if err != nil {
		return tr, fmt.Errorf("reading mirror ids: %w", err)
	}

	missing := make([]int64, 0)
	for id := range mirrorIDs {
		if _, ok := primaryIDs[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	tr.Missing = len(missing)

	if len(missing) == 0 {
		s.Logger.LogSync(t.Name, "in sync (0 missing)")
		return tr, nil
	}

	s.Logger.LogSync(t.Name, fmt.Sprintf("%d rows missing on primary", len(missing)))

	if dryRun {
		sample := missing
		if len(sample) > 10 {
			sample = sample[:10]
		}
		tr.SampleIDs = sample
		return tr, nil
	}

	for _, id := range missing {
		if err := s.copyRow(ctx, t, id); err != nil {
			// Row-level tolerance: one bad row never aborts the table.
			s.Logger.Error("DB_SYNC", fmt.Sprintf("copy %s id=%d failed: %v", t.Name, id, err))
			tr.Skipped++
			continue
		}
		tr.Copied++
	}

	s.Logger.LogSync(t.Name, fmt.Sprintf("%d rows copied, %d skipped", tr.Copied, tr.Skipped))
	return tr, nil
}

func (s *Syncer) tableIDs(ctx context.Context, db *bun.DB, t Table) (map[int64]struct{}, error) {
	var ids []int64
	err := db.NewSelect().
		Table(t.Name).
		Column(t.PK).
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// copyRow reads one raw row from the mirror and inserts it verbatim into the
// primary, foreign-key ids included. No relations are followed.
func (s *Syncer) copyRow(ctx context.Context, t Table, id int64) error {
	row := make(map[string]interface{})
	err := s.Mirror.NewSelect().
		Table(t.Name).
		Where("? = ?", bun.Ident(t.PK), id).
		Scan(ctx, &row)
	if err != nil {
		return fmt.Errorf("reading mirror row: %w", err)
	}

	_, err = s.Primary.NewInsert().
		Model(&row).
		Table(t.Name).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("inserting into primary: %w", err)
	}
	return nil
}

// updateSequences realigns the primary's auto-increment sequences with
// max(pk) so new inserts don't collide with ids copied from the mirror.
// Only Postgres needs this; sqlite (tests) keys off max(rowid) by itself.
func (s *Syncer) updateSequences(ctx context.Context, tables []Table) {
	if s.Primary.Dialect().Name() != dialect.PG {
		return
	}

	for _, t := range tables {
		var maxID int64
		err := s.Primary.NewSelect().
			Table(t.Name).
			ColumnExpr("COALESCE(MAX(?), 0)", bun.Ident(t.PK)).
			Scan(ctx, &maxID)
		if err != nil || maxID == 0 {
			continue
		}

		_, err = s.Primary.ExecContext(ctx,
			"SELECT setval(pg_get_serial_sequence(?, ?), ?, true)",
			t.Name, t.PK, maxID)
		if err != nil {
			s.Logger.Warn("DB_SYNC", fmt.Sprintf("sequence update for %s failed: %v", t.Name, err))
			continue
		}
		s.Logger.LogSync(t.Name, fmt.Sprintf("sequence set to %d", maxID))
	}
}
