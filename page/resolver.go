package page

import (
	"context"
	"fmt"

	"github.com/buzkaaclicker/streams"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const DefaultMaxFetch = 10000

// Resolver assembles pages of visible activity ids from ordered sources,
// growing the fetch size every round until the page is full or the sources
// run dry.
type Resolver struct {
	// Sources are asked every round. At most one source per order is used.
	Sources []streams.OrderedSource
	Trimmer Trimmer
	// MaxFetch caps the count requested from a source in a single round.
	// Zero means DefaultMaxFetch.
	MaxFetch int
}

// ResolvePage returns at most req.Size visible ids, in the order of the
// primary source.
func (r *Resolver) ResolvePage(ctx context.Context, filter streams.Filter,
	scope *VisibilityScope, req streams.PageRequest) ([]int64, error) {
	if req.Size <= 0 {
		return []int64{}, nil
	}
	maxFetch := r.MaxFetch
	if maxFetch <= 0 {
		maxFetch = DefaultMaxFetch
	}
	log := logrus.WithFields(logrus.Fields{
		"viewer": scope.Viewer(),
		"size":   req.Size,
		"min_id": req.MinId,
		"max_id": req.MaxId,
	})

	p := &pager{
		trimmer:  r.Trimmer,
		scope:    scope,
		size:     req.Size,
		verdicts: make(map[int64]bool),
	}
	rounds := 0
	defer func() { roundsHistogram.Observe(float64(rounds)) }()

	for round := 1; ; round++ {
		rounds = round
		count, capped := fetchCount(req.Size, round, maxFetch)
		candidates, exhausted, responded, err := r.fetch(ctx, filter, scope.Viewer(), req.Sort, count)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", round, err)
		}
		if !responded {
			log.Debugln("No source applies to filter.")
			return []int64{}, nil
		}

		// every round walks its candidates from the top so the page follows
		// the order of this round's merge, verdicts of earlier rounds are
		// reused
		p.reset()
		floor := false
		for _, id := range candidates {
			if req.Sort == streams.SortById && req.MinId > 0 && id <= req.MinId {
				floor = true
				break
			}
			if !req.InBounds(id) {
				continue
			}
			full, err := p.add(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("round %d: %w", round, err)
			}
			if full {
				log.WithField("rounds", round).Debugln("Page resolved.")
				return p.collected, nil
			}
		}

		log.WithFields(logrus.Fields{
			"round":      round,
			"requested":  count,
			"candidates": len(candidates),
			"collected":  len(p.collected),
		}).Debugln("Page round done.")

		if floor || exhausted || capped {
			if _, err := p.flush(ctx); err != nil {
				return nil, fmt.Errorf("round %d: %w", round, err)
			}
			return p.collected, nil
		}
	}
}

// fetchCount returns size*2^round bounded by max, and whether the bound
// was reached.
func fetchCount(size int, round int, max int) (int, bool) {
	if round >= 30 || size > max>>uint(round) {
		return max, true
	}
	count := size << uint(round)
	return count, count >= max
}

// fetch asks every source for count ids and merges the answers. exhausted
// is true when no responding source filled the request.
func (r *Resolver) fetch(ctx context.Context, filter streams.Filter, viewer streams.UserId,
	sort streams.SortMode, count int) (candidates []int64, exhausted bool, responded bool, err error) {
	type answer struct {
		ids []int64
		ok  bool
	}
	answers := make([]answer, len(r.Sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, source := range r.Sources {
		i, source := i, source
		g.Go(func() error {
			ids, ok, err := source.Fetch(gctx, filter, viewer, count)
			if err != nil {
				return fmt.Errorf("fetch %d ids: %w", count, err)
			}
			answers[i] = answer{ids: ids, ok: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, false, err
	}

	var descending, custom []int64
	var haveDescending, haveCustom bool
	exhausted = true
	for i, a := range answers {
		if !a.ok {
			continue
		}
		fetchedTotal.Add(float64(len(a.ids)))
		if len(a.ids) >= count {
			exhausted = false
		}
		switch r.Sources[i].Order() {
		case streams.OrderIdDescending:
			if !haveDescending {
				descending, haveDescending = a.ids, true
			}
		case streams.OrderCallerSort:
			if !haveCustom {
				custom, haveCustom = a.ids, true
			}
		}
	}

	switch {
	case haveDescending && haveCustom:
		if sort == streams.SortById {
			return Collide(descending, custom, count), exhausted, true, nil
		}
		return Collide(custom, descending, count), exhausted, true, nil
	case haveDescending:
		return descending, exhausted, true, nil
	case haveCustom:
		return custom, exhausted, true, nil
	default:
		return nil, true, false, nil
	}
}

type pager struct {
	trimmer  Trimmer
	scope    *VisibilityScope
	size     int
	verdicts map[int64]bool

	collected []int64
	batch     []int64
	emitted   map[int64]struct{}
}

func (p *pager) reset() {
	p.collected = make([]int64, 0, p.size)
	p.batch = make([]int64, 0, p.size)
	p.emitted = make(map[int64]struct{})
}

// add queues id for trimming and flushes full batches. It reports whether
// the page is full.
func (p *pager) add(ctx context.Context, id int64) (bool, error) {
	if _, ok := p.emitted[id]; ok {
		return false, nil
	}
	p.emitted[id] = struct{}{}
	p.batch = append(p.batch, id)
	if len(p.batch) < p.size {
		return false, nil
	}
	return p.flush(ctx)
}

// flush trims the ids of the pending batch not judged yet and appends the
// visible ones in batch order until the page is full.
func (p *pager) flush(ctx context.Context) (bool, error) {
	if len(p.batch) == 0 {
		return len(p.collected) >= p.size, nil
	}
	unknown := make([]int64, 0, len(p.batch))
	for _, id := range p.batch {
		if _, ok := p.verdicts[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	visible, err := p.trimmer.Trim(ctx, unknown, p.scope)
	if err != nil {
		return false, err
	}
	for _, id := range unknown {
		p.verdicts[id] = false
	}
	for _, id := range visible {
		p.verdicts[id] = true
	}

	for _, id := range p.batch {
		if len(p.collected) >= p.size {
			break
		}
		if p.verdicts[id] {
			p.collected = append(p.collected, id)
		}
	}
	p.batch = make([]int64, 0, p.size)
	return len(p.collected) >= p.size, nil
}
