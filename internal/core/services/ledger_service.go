package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/ledger_balances/internal/apperrors"
	"github.com/SscSPs/ledger_balances/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_balances/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/ledger_balances/internal/core/ports/services"
	"github.com/SscSPs/ledger_balances/internal/filter"
)

const (
	opCreate    = "create"
	opUpdate    = "update"
	opDelete    = "delete"
	opRecompute = "recompute"

	defaultMaxRetries   = 3
	defaultRetryBackoff = 50 * time.Millisecond
	maxListLimit        = 500
)

// ledgerService applies ledger mutations and keeps running balances in step within the same
// transaction.
type ledgerService struct {
	BaseService
	repo         portsrepo.LedgerRepositoryFacade
	validate     *validator.Validate
	maxRetries   int
	retryBackoff time.Duration
}

// LedgerServiceOption is a function that configures a ledgerService
type LedgerServiceOption func(*ledgerService)

// WithRecomputeRetries sets how often a mutation is retried after a conflict and the base
// backoff between attempts. Attempt n waits n*backoff.
func WithRecomputeRetries(maxRetries int, backoff time.Duration) LedgerServiceOption {
	return func(s *ledgerService) {
		if maxRetries >= 0 {
			s.maxRetries = maxRetries
		}
		if backoff >= 0 {
			s.retryBackoff = backoff
		}
	}
}

// NewLedgerService creates a new ledger service with the given options
func NewLedgerService(repo portsrepo.LedgerRepositoryFacade, options ...LedgerServiceOption) portssvc.LedgerSvcFacade {
	s := &ledgerService{
		repo:         repo,
		validate:     newLineValidator(),
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultRetryBackoff,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Ensure ledgerService implements the portssvc.LedgerSvcFacade interface
var _ portssvc.LedgerSvcFacade = (*ledgerService)(nil)

// newLineValidator returns a validator that compares decimal amounts numerically.
func newLineValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

func (s *ledgerService) validateInput(in domain.LineInput) error {
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return nil
}

func (s *ledgerService) GetLine(ctx context.Context, lineID int64) (*domain.LedgerLine, error) {
	line, err := s.repo.FindLineByID(ctx, lineID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to get ledger line", slog.Int64("line_id", lineID))
		}
		return nil, err
	}
	return line, nil
}

func (s *ledgerService) ListLines(ctx context.Context, pred filter.Predicate, limit int, nextToken *string) ([]domain.LedgerLine, *string, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	lines, next, err := s.repo.ListLines(ctx, pred, limit, nextToken)
	if err != nil {
		s.LogError(ctx, err, "Failed to list ledger lines", slog.Int("limit", limit))
		return nil, nil, err
	}
	return lines, next, nil
}

func (s *ledgerService) CreateLines(ctx context.Context, inputs []domain.LineInput, opts domain.MutationOptions) ([]domain.LedgerLine, error) {
	if len(inputs) == 0 {
		return []domain.LedgerLine{}, nil
	}
	lines := make([]domain.LedgerLine, len(inputs))
	points := make([]domain.RecomputePoint, len(inputs))
	for i, in := range inputs {
		if err := s.validateInput(in); err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		lines[i] = in.ToLine()
		points[i] = domain.PointOf(lines[i])
	}
	targets := domain.CollapseTargets(points)

	var created []domain.LedgerLine
	err := s.runMutation(ctx, opCreate, func(ctx context.Context, tx portsrepo.LedgerTx) error {
		if err := tx.LockPartitions(ctx, domain.Partitions(targets)); err != nil {
			return err
		}
		inserted, err := tx.InsertLines(ctx, lines)
		if err != nil {
			return err
		}
		if !opts.SkipRecompute {
			if _, err := s.recompute(ctx, tx, targets, nil); err != nil {
				return err
			}
			if err := fillBalances(ctx, tx, inserted); err != nil {
				return err
			}
		}
		created = inserted
		return nil
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to create ledger lines", slog.Int("count", len(inputs)))
		return nil, err
	}
	s.LogInfo(ctx, "Ledger lines created", slog.Int("count", len(created)), slog.Int("partitions", len(targets)), slog.Bool("skip_recompute", opts.SkipRecompute))
	return created, nil
}

func (s *ledgerService) UpdateLines(ctx context.Context, updates []domain.LineUpdate, opts domain.MutationOptions) ([]domain.LedgerLine, error) {
	if len(updates) == 0 {
		return []domain.LedgerLine{}, nil
	}
	ids := make([]int64, len(updates))
	seen := make(map[int64]struct{}, len(updates))
	for i, u := range updates {
		if _, dup := seen[u.LineID]; dup {
			return nil, fmt.Errorf("%w: line %d updated twice in one request", apperrors.ErrValidation, u.LineID)
		}
		seen[u.LineID] = struct{}{}
		ids[i] = u.LineID
	}

	// Both the partition a line leaves and the one it enters are locked.
	keysOf := func(pre domain.LedgerLine) []domain.PartitionKey {
		return []domain.PartitionKey{pre.Partition(), updateFor(updates, pre.LineID).Apply(pre).Partition()}
	}

	var updated []domain.LedgerLine
	err := s.runMutation(ctx, opUpdate, func(ctx context.Context, tx portsrepo.LedgerTx) error {
		current, err := s.loadLocked(ctx, tx, ids, keysOf)
		if err != nil {
			return err
		}

		posts := make([]domain.LedgerLine, 0, len(updates))
		points := []domain.RecomputePoint{}
		unposted := []int64{}
		for _, u := range updates {
			pre := current[u.LineID]
			post := u.Apply(pre)
			if err := s.validateInput(domain.InputOf(post)); err != nil {
				return fmt.Errorf("line %d: %w", u.LineID, err)
			}
			posts = append(posts, post)
			if !u.AffectsBalances() {
				continue
			}
			points = append(points, domain.PointOf(pre), domain.PointOf(post))
			if !post.IsPosted() {
				unposted = append(unposted, post.LineID)
			}
		}

		if err := tx.UpdateLines(ctx, posts); err != nil {
			return err
		}
		if !opts.SkipRecompute {
			if _, err := s.recompute(ctx, tx, domain.CollapseTargets(points), unposted); err != nil {
				return err
			}
			if err := fillBalances(ctx, tx, posts); err != nil {
				return err
			}
		}
		updated = posts
		return nil
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to update ledger lines", slog.Int("count", len(updates)))
		return nil, err
	}
	s.LogInfo(ctx, "Ledger lines updated", slog.Int("count", len(updated)), slog.Bool("skip_recompute", opts.SkipRecompute))
	return updated, nil
}

func (s *ledgerService) DeleteLines(ctx context.Context, lineIDs []int64, opts domain.MutationOptions) (int64, error) {
	ids := uniqueIDs(lineIDs)
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := s.runMutation(ctx, opDelete, func(ctx context.Context, tx portsrepo.LedgerTx) error {
		current, err := s.loadLocked(ctx, tx, ids, func(pre domain.LedgerLine) []domain.PartitionKey {
			return []domain.PartitionKey{pre.Partition()}
		})
		if err != nil {
			return err
		}
		points := make([]domain.RecomputePoint, 0, len(current))
		for _, pre := range current {
			points = append(points, domain.PointOf(pre))
		}

		// Records go first so a failing line delete never leaves them dangling.
		if _, err := tx.DeleteBalances(ctx, ids); err != nil {
			return err
		}
		n, err := tx.DeleteLines(ctx, ids)
		if err != nil {
			return err
		}
		if !opts.SkipRecompute {
			if _, err := s.recompute(ctx, tx, domain.CollapseTargets(points), nil); err != nil {
				return err
			}
		}
		deleted = n
		return nil
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to delete ledger lines", slog.Int("count", len(ids)))
		return 0, err
	}
	s.LogInfo(ctx, "Ledger lines deleted", slog.Int64("count", deleted), slog.Bool("skip_recompute", opts.SkipRecompute))
	return deleted, nil
}

func (s *ledgerService) RecomputeLines(ctx context.Context, lineIDs []int64) (*domain.RecomputeStats, error) {
	ids := uniqueIDs(lineIDs)
	if len(ids) == 0 {
		return &domain.RecomputeStats{}, nil
	}

	var stats *domain.RecomputeStats
	err := s.runMutation(ctx, opRecompute, func(ctx context.Context, tx portsrepo.LedgerTx) error {
		current, err := s.loadLocked(ctx, tx, ids, func(l domain.LedgerLine) []domain.PartitionKey {
			return []domain.PartitionKey{l.Partition()}
		})
		if err != nil {
			return err
		}
		points := make([]domain.RecomputePoint, 0, len(current))
		unposted := []int64{}
		for _, l := range current {
			points = append(points, domain.PointOf(l))
			if !l.IsPosted() {
				unposted = append(unposted, l.LineID)
			}
		}
		st, err := s.recompute(ctx, tx, domain.CollapseTargets(points), unposted)
		if err != nil {
			return err
		}
		stats = st
		return nil
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to recompute ledger lines", slog.Int("count", len(ids)))
		return nil, err
	}
	s.LogInfo(ctx, "Ledger lines recomputed", slog.Int("partitions", stats.Partitions), slog.Int64("rows", stats.Rows))
	return stats, nil
}

// runMutation runs fn in a transaction, retrying with linear backoff while the store reports
// a conflict.
func (s *ledgerService) runMutation(ctx context.Context, op string, fn portsrepo.TxFunc) error {
	timer := prometheus.NewTimer(ledgerMutationDuration.WithLabelValues(op))
	defer timer.ObserveDuration()

	var err error
	for attempt := 1; ; attempt++ {
		err = s.repo.RunInTx(ctx, fn)
		if err == nil {
			ledgerMutationsTotal.WithLabelValues(op, "success").Inc()
			return nil
		}
		if !errors.Is(err, apperrors.ErrConflict) || attempt > s.maxRetries {
			break
		}
		recomputeConflictRetries.WithLabelValues(op).Inc()
		s.LogInfo(ctx, "Retrying ledger mutation after conflict",
			slog.String("operation", op),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			ledgerMutationsTotal.WithLabelValues(op, "error").Inc()
			return ctx.Err()
		case <-time.After(s.retryBackoff * time.Duration(attempt)):
		}
	}
	ledgerMutationsTotal.WithLabelValues(op, "error").Inc()
	return err
}

// loadLocked reads the given lines, locks every partition keysOf reports for them, then re-reads
// the lines under row locks. If a line moved to a partition that was not locked in between, the
// attempt fails with a conflict and is retried.
func (s *ledgerService) loadLocked(ctx context.Context, tx portsrepo.LedgerTx, ids []int64, keysOf func(domain.LedgerLine) []domain.PartitionKey) (map[int64]domain.LedgerLine, error) {
	snapshot, err := tx.FindLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	if err := requireAll(ids, snapshot); err != nil {
		return nil, err
	}

	locked := make(map[domain.PartitionKey]struct{})
	for _, l := range snapshot {
		for _, k := range keysOf(l) {
			locked[k] = struct{}{}
		}
	}
	keys := make([]domain.PartitionKey, 0, len(locked))
	for k := range locked {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	if err := tx.LockPartitions(ctx, keys); err != nil {
		return nil, err
	}

	current, err := tx.FindLinesForUpdate(ctx, ids)
	if err != nil {
		return nil, err
	}
	if err := requireAll(ids, current); err != nil {
		return nil, err
	}
	byID := make(map[int64]domain.LedgerLine, len(current))
	for _, l := range current {
		for _, k := range keysOf(l) {
			if _, ok := locked[k]; !ok {
				return nil, fmt.Errorf("%w: line %d changed partition concurrently", apperrors.ErrConflict, l.LineID)
			}
		}
		byID[l.LineID] = l
	}
	return byID, nil
}

// recompute clears the records of lines that left the posted state and rewrites the posted
// tails of targets.
func (s *ledgerService) recompute(ctx context.Context, tx portsrepo.LedgerTx, targets []domain.RecomputeTarget, unposted []int64) (*domain.RecomputeStats, error) {
	stats := &domain.RecomputeStats{Partitions: len(targets)}
	if len(unposted) > 0 {
		n, err := tx.DeleteBalances(ctx, unposted)
		if err != nil {
			return nil, err
		}
		stats.Cleared = n
	}
	if len(targets) > 0 {
		n, err := tx.RecomputeTargets(ctx, targets)
		if err != nil {
			return nil, fmt.Errorf("recomputing %d partitions: %w", len(targets), err)
		}
		stats.Rows = n
		recomputeRowsTotal.Add(float64(n))
	}
	s.LogDebug(ctx, "Recomputed running balances",
		slog.Int("partitions", stats.Partitions),
		slog.Int64("rows", stats.Rows),
		slog.Int64("cleared", stats.Cleared))
	return stats, nil
}

// fillBalances copies the freshly stored records onto lines.
func fillBalances(ctx context.Context, tx portsrepo.LedgerTx, lines []domain.LedgerLine) error {
	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.LineID
	}
	records, err := tx.FindBalances(ctx, ids)
	if err != nil {
		return err
	}
	for i := range lines {
		lines[i].InitialBalance, lines[i].EndBalance = nil, nil
		if rec, ok := records[lines[i].LineID]; ok {
			initial, end := rec.InitialBalance, rec.EndBalance
			lines[i].InitialBalance, lines[i].EndBalance = &initial, &end
		}
	}
	return nil
}

func updateFor(updates []domain.LineUpdate, lineID int64) domain.LineUpdate {
	for _, u := range updates {
		if u.LineID == lineID {
			return u
		}
	}
	return domain.LineUpdate{LineID: lineID}
}

func requireAll(ids []int64, lines []domain.LedgerLine) error {
	if len(lines) == len(ids) {
		return nil
	}
	found := make(map[int64]struct{}, len(lines))
	for _, l := range lines {
		found[l.LineID] = struct{}{}
	}
	missing := []int64{}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return fmt.Errorf("%w: ledger lines %v", apperrors.ErrNotFound, missing)
}

// uniqueIDs returns the distinct positive ids sorted ascending.
func uniqueIDs(ids []int64) []int64 {
	set := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := set[id]; ok || id <= 0 {
			continue
		}
		set[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
