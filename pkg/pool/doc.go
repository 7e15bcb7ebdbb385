// Package pool serves jokes from the persisted pool and tops it up from the provider
// when a request asks for more than the pool holds.
//
// A request for count items reads the whole pool, fetches the shortfall, dedupes the
// fetched candidates in two phases (against the snapshot, then against the live store)
// and inserts the survivors with one bulk call. The first count items in arrival order
// are returned with identifiers generated for that response only.
//
// The read and the write are not one transaction. Two concurrent top-ups can race on
// the same question; the live re-check narrows the window but does not close it.
package pool
