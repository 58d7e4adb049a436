// Package assoc resolves virtual associations in batches.
//
// A virtual association links a record to an object that lives outside the
// record's own store (another service, another table, an in-memory source).
// Record types declare associations in a Registry. A query view carries a
// Resolver with the association names it was asked to include; once the
// view's records are materialized the host calls OnMaterialize, and each
// requested association is resolved with a single bulk fetch over the
// distinct foreign-key values of the loaded records. Invalidate resets the
// view so the next materialization resolves again.
package assoc
