package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/VictorGavo/milvus-search/internal/segment"
	"github.com/VictorGavo/milvus-search/internal/vector"
)

const embedTimeout = 60 * time.Second

// Options fixes the collection and segmentation behavior for a Service.
type Options struct {
	Collection       string
	Dimension        int
	Strategy         segment.Strategy
	HeadingFontSize  float64
	MinSectionLength int
}

// Service is the ingestion coordinator. For each unit of a document it
// derives identity, embeds, dedup-checks, and writes vector then text,
// reporting a per-unit outcome. One unit failing never aborts its siblings;
// collection-level failures abort the whole call.
type Service struct {
	repo     Repository
	embedder Embedder
	vectors  VectorStore
	readDoc  DocumentReader
	opts     Options
}

func NewService(repo Repository, embedder Embedder, vectors VectorStore, readDoc DocumentReader, opts Options) *Service {
	if opts.Strategy == "" {
		opts.Strategy = segment.StrategyPage
	}
	if opts.MinSectionLength <= 0 {
		opts.MinSectionLength = segment.DefaultMinSectionLength
	}
	return &Service{repo: repo, embedder: embedder, vectors: vectors, readDoc: readDoc, opts: opts}
}

// Ingest processes the PDF at path end to end. strategy overrides the
// configured segmentation strategy when non-empty.
func (s *Service) Ingest(ctx context.Context, path string, strategy segment.Strategy) (*Report, error) {
	doc, err := s.readDoc(path)
	if err != nil {
		return nil, err
	}

	if _, err := s.vectors.EnsureCollection(ctx, s.opts.Collection, s.opts.Dimension, vector.PolicyReuse); err != nil {
		return nil, fmt.Errorf("ensuring collection %q: %w", s.opts.Collection, err)
	}

	if strategy == "" {
		strategy = s.opts.Strategy
	}
	units := segment.Split(doc, strategy, s.opts.HeadingFontSize, s.opts.MinSectionLength)

	report := &Report{Document: doc.Name, Collection: s.opts.Collection}
	for _, unit := range units {
		outcome := s.ingestUnit(ctx, doc, unit)
		switch outcome.Status {
		case StatusStored:
			report.Stored++
		case StatusSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
		report.Units = append(report.Units, outcome)
	}

	// Make the new vectors searchable before the caller gets the report.
	if report.Stored > 0 {
		if err := s.vectors.Load(ctx, s.opts.Collection); err != nil {
			slog.WarnContext(ctx, "load after ingest failed", "collection", s.opts.Collection, "error", err)
		}
	}

	slog.InfoContext(ctx, "document ingested",
		"document", doc.Name, "units", len(units),
		"stored", report.Stored, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

func (s *Service) ingestUnit(ctx context.Context, doc segment.Document, unit segment.Unit) UnitOutcome {
	id := segment.DeriveID(doc.Path, unit.Sequence)
	hash := segment.DeriveHash(unit.Text)
	outcome := UnitOutcome{ID: id, Sequence: unit.Sequence}

	fail := func(err error) UnitOutcome {
		slog.WarnContext(ctx, "unit ingestion failed",
			"document", doc.Name, "sequence", unit.Sequence, "error", err)
		outcome.Status = StatusFailed
		outcome.Error = err.Error()
		return outcome
	}

	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	vec, err := s.embedder.Embed(embedCtx, unit.Text)
	cancel()
	if err != nil {
		return fail(fmt.Errorf("embedding: %w", err))
	}

	// Fast-path dedup check; the text store's unique constraint stays
	// authoritative if another writer races past this.
	exists, err := s.repo.ExistsByHash(ctx, hash)
	if err != nil {
		return fail(fmt.Errorf("dedup check: %w", err))
	}
	if exists {
		outcome.Status = StatusSkipped
		return outcome
	}

	// Vector first, then text. A dimension mismatch therefore never leaves an
	// orphan text row behind.
	if err := s.vectors.Upsert(ctx, s.opts.Collection, []int64{id}, [][]float32{vec}); err != nil {
		return fail(fmt.Errorf("vector upsert: %w", err))
	}

	err = s.repo.Insert(ctx, &TextUnit{
		ID:           id,
		DocumentName: doc.Name,
		PageNumber:   unit.Sequence,
		Text:         unit.Text,
		TextHash:     hash,
		ProcessedAt:  time.Now(),
	})
	if errors.Is(err, ErrDuplicateContent) {
		// Lost a race with a concurrent ingestion of identical content.
		slog.InfoContext(ctx, "duplicate content, skipping",
			"document", doc.Name, "sequence", unit.Sequence)
		outcome.Status = StatusSkipped
		return outcome
	}
	if err != nil {
		return fail(fmt.Errorf("text insert: %w", err))
	}

	outcome.Status = StatusStored
	return outcome
}
