// Package ledger keeps numbered versions of content trees.
//
// Each instance has an int64 id allocated by the storage backend and a
// set of versions. Committing stores a new version one above the current
// max; saving overwrites a version in place. Per-version bookkeeping is
// stored as the instance's metadata record, and the min, max, live and
// last-modified markers are always derived from it.
//
// Writes by a non-system capability are checked change by change against
// the permissions of the changed property's assignment. Values hidden
// from the writer are carried over from the previous version.
package ledger
