package dispatch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FanOut runs sendOne once per recipient with the merged render context
// (shared overlaid with personalized), bounded to at most concurrency
// in-flight calls. Recipients are isolated: sendOne's outcome — success
// or failure — is recorded and never aborts the siblings, so the result
// always carries exactly one entry per recipient.
func FanOut(
	ctx context.Context,
	concurrency int,
	req *SendRequest,
	sendOne func(ctx context.Context, recipient string, merged Context) Outcome,
) SendResult {
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu     sync.Mutex
		result = make(SendResult, len(req.PersonalizedContext))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for recipient, personalized := range req.PersonalizedContext {
		g.Go(func() error {
			outcome := sendOne(ctx, recipient, MergeContexts(req.SharedContext, personalized))

			mu.Lock()
			result[recipient] = outcome
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; Wait only synchronizes completion.
	_ = g.Wait()

	return result
}
