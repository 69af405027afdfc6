// Package memory provides a process-local storage.Ledger.
//
// Records and logs live in maps guarded by a single RWMutex. Messages are
// stored as copies, so callers may reuse the slices they pass in. Nothing
// survives the process; use it for tests and throwaway hierarchies.
package memory
