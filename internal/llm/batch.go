package llm

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of analyzing one image of a batch.
type BatchResult struct {
	Index  int
	Result *AnalysisResult
	Err    error
}

// AnalyzeBatch analyzes images concurrently, at most concurrency at a time.
// A failed image does not stop the others. Results are in input order.
func AnalyzeBatch(ctx context.Context, analyzer Analyzer, images [][]byte, concurrency int) []BatchResult {
	results := make([]BatchResult, len(images))
	if concurrency < 1 {
		concurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, img := range images {
		g.Go(func() error {
			res, err := analyzer.Analyze(ctx, img)
			results[i] = BatchResult{Index: i, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
