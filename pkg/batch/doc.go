// Package batch drives the acquisition client to satisfy a requested quantity of jokes.
//
// The requested total is split into ceil(total/BatchSize) batches. Batches run one after
// the other; inside a batch every fetch runs concurrently, so at most BatchSize fetches
// are in flight at once.
//
// Example usage:
//
//	fetcher := batch.New(providerClient, batch.DefaultConfig(), logger)
//	candidates, report, err := fetcher.FetchMany(ctx, 25)
//
// The batch fetcher:
//   - Rejects a non-positive BatchSize before any fetch
//   - Collects candidates in completion order
//   - Logs and counts failed fetches, never aborting the batch for them
//   - Stops launching batches once the context is cancelled (returns partial data)
package batch
