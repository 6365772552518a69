package filterlist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AdguardTeam/flatfilter/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"golang.org/x/sync/errgroup"
)

// ctxCheckInterval is the number of scanned filters between checks of the
// context.
const ctxCheckInterval = 1024

// RuleStorage combines several rule lists and parses them into a single
// sequence of network filters.
//
// Filter IDs are unique within the storage: the filters of each list are
// numbered after the filters of the previous lists, in the order of the
// lists, and in the order of lines within a list.
type RuleStorage struct {
	logger *slog.Logger

	// lists are the rule lists in the order given to [NewRuleStorage].
	lists []RuleList
}

// NewRuleStorage creates a new instance of the RuleStorage and validates the
// list of rules specified.  logger must not be nil.
func NewRuleStorage(logger *slog.Logger, lists []RuleList) (s *RuleStorage, err error) {
	ids := make(map[int]struct{}, len(lists))
	for i, list := range lists {
		id := list.GetID()
		if _, ok := ids[id]; ok {
			return nil, fmt.Errorf("list at index %d: duplicate list id: %d", i, id)
		}

		ids[id] = struct{}{}
	}

	return &RuleStorage{
		logger: logger,
		lists:  lists,
	}, nil
}

// LoadResult is the result of [RuleStorage.Filters].
type LoadResult struct {
	// Filters are the parsed filters sorted by ID.
	Filters []*rules.NetworkFilter

	// Invalid is the number of lines which could not be parsed.
	Invalid int
}

// listResult is the result of scanning a single list.
type listResult struct {
	filters []*rules.NetworkFilter
	invalid int
}

// Filters scans every list concurrently and returns their filters.  An I/O
// error in any list cancels the others and is returned.  Invalid lines are
// skipped and logged.
func (s *RuleStorage) Filters(ctx context.Context) (res *LoadResult, err error) {
	results := make([]listResult, len(s.lists))

	g, gCtx := errgroup.WithContext(ctx)
	for i, l := range s.lists {
		g.Go(func() (scanErr error) {
			results[i], scanErr = s.scan(gCtx, l)

			return scanErr
		})
	}

	err = g.Wait()
	if err != nil {
		return nil, fmt.Errorf("loading rule lists: %w", err)
	}

	res = &LoadResult{}
	for _, r := range results {
		res.Invalid += r.invalid
		for _, f := range r.filters {
			f.ID = uint64(len(res.Filters))
			res.Filters = append(res.Filters, f)
		}
	}

	return res, nil
}

// scan reads every filter of l.
func (s *RuleStorage) scan(ctx context.Context, l RuleList) (res listResult, err error) {
	listID := l.GetID()

	sc := l.NewScanner()
	for n := 0; sc.Scan(); n++ {
		if n%ctxCheckInterval == 0 && ctx.Err() != nil {
			return res, fmt.Errorf("list %d: %w", listID, context.Cause(ctx))
		}

		f, _ := sc.Rule()
		res.filters = append(res.filters, f)
	}

	err = sc.Err()
	if err != nil {
		return res, fmt.Errorf("list %d: %w", listID, err)
	}

	res.invalid = sc.Invalid()
	if res.invalid > 0 {
		s.logger.WarnContext(
			ctx,
			"skipped invalid rules",
			"list_id", listID,
			"count", res.invalid,
			slogutil.KeyError, sc.LastInvalid(),
		)
	}

	s.logger.DebugContext(ctx, "scanned rule list", "list_id", listID, "filters", len(res.filters))

	return res, nil
}

// Close closes the storage instance.
func (s *RuleStorage) Close() (err error) {
	if len(s.lists) == 0 {
		return nil
	}

	var errs []error
	for _, l := range s.lists {
		err = l.Close()
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Annotate(errors.Join(errs...), "closing rule lists: %w")
}
