package enrich

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/dalbodeule/noticecal/internal/config"
	"github.com/dalbodeule/noticecal/internal/fingerprint"
	"github.com/dalbodeule/noticecal/internal/model"
)

// pdfMagic marks an attachment as qualifying for metadata extraction.
var pdfMagic = []byte("%PDF")

// Pipeline converts raw notices needing (re)processing into derived
// notices. Notices are grouped into schedule-extraction batches bounded by
// the content budget; batches are drained by a fixed-size worker pool.
type Pipeline struct {
	oracle  Oracle
	workers int
	budget  int

	// memoFor renders the base memo (the link back to the posting) for a
	// raw notice; supply summaries are appended to it.
	memoFor func(raw *model.RawNotice) string

	logger *log.Logger
}

// NewPipeline builds a pipeline over the given oracle.
func NewPipeline(oracle Oracle, cfg config.EnrichConfig, memoFor func(raw *model.RawNotice) string, logger *log.Logger) *Pipeline {
	return &Pipeline{
		oracle:  oracle,
		workers: cfg.Workers,
		budget:  cfg.BatchBudget,
		memoFor: memoFor,
		logger:  logger,
	}
}

// Run enriches all given raw notices and returns exactly one derived notice
// per input, in no particular order; the caller re-keys by board id.
//
// One failing task aborts the run: a non-rate-limit oracle error (or a
// cardinality mismatch) cancels the remaining workers and no partial result
// is returned. Completion is a hard join point.
func (p *Pipeline) Run(ctx context.Context, raws []*model.RawNotice) ([]*model.Notice, error) {
	if len(raws) == 0 {
		return nil, nil
	}

	batches := p.splitBatches(raws)

	workers := p.workers
	if workers > len(batches) {
		workers = len(batches)
	}

	tasks := make(chan []*model.RawNotice, len(batches))
	for _, batch := range batches {
		tasks <- batch
	}
	close(tasks)

	results := make(chan *model.Notice, len(raws))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for batch := range tasks {
				notices, err := p.processBatch(ctx, batch)
				if err != nil {
					return err
				}
				for _, n := range notices {
					select {
					case results <- n:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)

	out := make([]*model.Notice, 0, len(raws))
	for n := range results {
		out = append(out, n)
	}

	return out, nil
}

// processBatch runs one schedule extraction for the batch plus one
// attachment extraction per notice carrying a PDF.
func (p *Pipeline) processBatch(ctx context.Context, batch []*model.RawNotice) ([]*model.Notice, error) {
	bodies := make([]string, len(batch))
	for i, raw := range batch {
		bodies[i] = raw.Content
	}

	schedules, err := p.oracle.ExtractScheduleBatch(ctx, bodies)
	if err != nil {
		return nil, err
	}
	if len(schedules) != len(batch) {
		return nil, fmt.Errorf("%w: got %d schedules for %d notices",
			ErrCardinality, len(schedules), len(batch))
	}

	notices := make([]*model.Notice, len(batch))
	for i, raw := range batch {
		memo := p.memoFor(raw)

		if bytes.HasPrefix(raw.Attachment, pdfMagic) {
			meta, err := p.oracle.ExtractAttachment(ctx, raw.Attachment)
			if err != nil {
				return nil, fmt.Errorf("notice %d: %w", raw.ID, err)
			}
			if summary := meta.Summary(); summary != "" {
				memo += "\n\n" + summary
			}
		}

		notices[i] = &model.Notice{
			ID:             raw.ID,
			Title:          raw.Title,
			Memo:           memo,
			ContentHash:    fingerprint.Content(raw.Content),
			AttachmentHash: fingerprint.Attachment(raw.Attachment),
			Application:    schedules[i].Application,
			Result:         schedules[i].Result,
		}
	}

	return notices, nil
}

// splitBatches groups notices greedily under the content budget. A single
// notice larger than the budget still forms its own batch.
func (p *Pipeline) splitBatches(raws []*model.RawNotice) [][]*model.RawNotice {
	var batches [][]*model.RawNotice
	var current []*model.RawNotice
	size := 0

	for _, raw := range raws {
		if len(current) > 0 && size+len(raw.Content) > p.budget {
			batches = append(batches, current)
			current = nil
			size = 0
		}
		current = append(current, raw)
		size += len(raw.Content)
	}

	if len(current) > 0 {
		batches = append(batches, current)
	}

	return batches
}
