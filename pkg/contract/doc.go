// Package contract provides reusable execution contracts that concrete node
// implementations compose with: conditions, iteration, retry with timeout,
// and caching.
//
// Every contract is a wrapper producing or consuming a plain
// protocol.ExecutorFunc, so richer behaviors stack without a class
// hierarchy. A plain action node is just an ExecutorFunc with no wrapper;
// triggers are lifecycle-bound and live behind protocol.Trigger instead of
// the per-run execute contract.
package contract
