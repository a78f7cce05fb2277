// Package matching runs the fuzzy candidate stage: it scores every source
// company against the target universe and writes the candidates file.
package matching

import (
	"context"
	"errors"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/company-match/internal/model"
	"github.com/sells-group/company-match/internal/resolve"
	"github.com/sells-group/company-match/internal/tabular"
)

// DefaultChunkSize is how many source rows are processed between appends to
// the output file.
const DefaultChunkSize = 1000

// ErrOutputExists is returned when the candidates file is already present.
var ErrOutputExists = eris.New("fuzzy output already exists")

// Options configures one fuzzy stage run.
type Options struct {
	SourcePath        string
	SourceIDColumn    string
	SourceNameColumns []string
	TargetPath        string
	TargetNameColumn  string
	CommonTerms       []string
	Threshold         float64
	OutputPath        string
	ChunkSize         int
	Decoder           *tabular.Decoder
}

// Result summarizes a fuzzy stage run.
type Result struct {
	SourceRows  int
	TargetNames int
	Records     int
	Skipped     int
}

// PerformFuzzyMatching scores each source company against the target names
// and appends matches to opts.OutputPath every ChunkSize source rows.
func PerformFuzzyMatching(ctx context.Context, opts Options) (*Result, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Decoder == nil {
		opts.Decoder = tabular.NewDecoder(tabular.DefaultLegacyEncoding)
	}

	if _, err := os.Stat(opts.OutputPath); err == nil {
		return nil, eris.Wrapf(ErrOutputExists, "matching: %s", opts.OutputPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrapf(err, "matching: stat %s", opts.OutputPath)
	}

	var source, target *tabular.Table
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		source, err = tabular.ReadTable(opts.SourcePath, opts.Decoder)
		return eris.Wrap(err, "matching: load source")
	})
	g.Go(func() error {
		var err error
		target, err = tabular.ReadTable(opts.TargetPath, opts.Decoder)
		return eris.Wrap(err, "matching: load target")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := source.RequireColumns(opts.SourceIDColumn); err != nil {
		return nil, err
	}
	if err := requireAny(source, opts.SourceNameColumns); err != nil {
		return nil, err
	}
	if err := target.RequireColumns(opts.TargetNameColumn); err != nil {
		return nil, err
	}

	norm := resolve.NewNormalizer(opts.CommonTerms)
	idx := resolve.BuildIndex(norm, target.Column(opts.TargetNameColumn))
	universe := idx.Keys()

	log := zap.L().With(zap.String("output", opts.OutputPath))
	log.Info("matching: starting fuzzy stage",
		zap.Int("source_rows", len(source.Rows)),
		zap.Int("target_names", idx.Len()),
		zap.Float64("threshold", opts.Threshold),
	)

	res := &Result{SourceRows: len(source.Rows), TargetNames: idx.Len()}
	var pending [][]string
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := tabular.AppendCSV(opts.OutputPath, Header, pending); err != nil {
			return eris.Wrap(err, "matching: save chunk")
		}
		res.Records += len(pending)
		pending = pending[:0]
		return nil
	}

	for i, row := range source.Rows {
		if ctx.Err() != nil {
			log.Warn("matching: interrupted, flushing pending rows", zap.Int("processed", i))
			break
		}

		if rec, ok := matchRow(source, row, opts, norm, idx, universe); ok {
			if rec.ID == "" {
				res.Skipped++
				log.Warn("matching: source row has no id, skipping", zap.Int("row", i+1), zap.String("name", rec.Name))
			} else {
				pending = append(pending, toRow(rec))
			}
		}

		if (i+1)%opts.ChunkSize == 0 {
			n := len(pending)
			if err := flush(); err != nil {
				return res, err
			}
			if n > 0 {
				log.Info("matching: saved chunk", zap.Int("processed", i+1), zap.Int("rows", n))
			}
		}
	}

	if err := flush(); err != nil {
		return res, err
	}

	log.Info("matching: fuzzy stage complete",
		zap.Int("records", res.Records),
		zap.Int("skipped", res.Skipped),
	)
	return res, ctx.Err()
}

// sourceRecord resolves a source row's id and display name. The name comes
// from the first fallback column holding a non-missing value.
func sourceRecord(source *tabular.Table, row []string, opts Options) (model.SourceRecord, bool) {
	name, ok := source.FirstPresent(row, opts.SourceNameColumns)
	if !ok {
		return model.SourceRecord{}, false
	}
	id, _ := source.Value(row, opts.SourceIDColumn)
	return model.SourceRecord{ID: id, Name: name}, true
}

func matchRow(
	source *tabular.Table,
	row []string,
	opts Options,
	norm *resolve.Normalizer,
	idx *resolve.Index,
	universe []string,
) (model.FuzzyMatchRecord, bool) {
	src, ok := sourceRecord(source, row, opts)
	if !ok {
		return model.FuzzyMatchRecord{}, false
	}
	cleaned := norm.Normalize(src.Name)
	if cleaned == "" {
		return model.FuzzyMatchRecord{}, false
	}

	candidates := resolve.FindCandidates(cleaned, universe, opts.Threshold)
	matches := idx.Expand(resolve.CandidateNames(candidates))
	if len(matches) == 0 {
		return model.FuzzyMatchRecord{}, false
	}

	return model.FuzzyMatchRecord{ID: src.ID, Name: src.Name, Matches: matches}, true
}

func requireAny(t *tabular.Table, cols []string) error {
	for _, col := range cols {
		if t.HasColumn(col) {
			return nil
		}
	}
	if len(cols) == 0 {
		return eris.Wrap(tabular.ErrMissingColumn, "matching: no source name columns configured")
	}
	return eris.Wrapf(tabular.ErrMissingColumn, "matching: none of the name columns %v found in %s", cols, t.Path)
}
