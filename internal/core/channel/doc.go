// Package channel manages the root → category → actor → daily channel
// hierarchy.
//
// RootManager owns the root channel and exactly one CategoryManager per
// domain.Category. A CategoryManager owns a registry of ActorManagers,
// created on first write. An ActorManager owns a date-indexed directory of
// daily channels and a cache of live DailyChannel handles keyed by
// (date, sha256(password)).
//
// Every parent publishes a signed JSON directory entry for each child. The
// directories are the only thing needed to rebuild the hierarchy after a
// restart; they are re-read from the backend log, and the first entry for a
// key wins.
//
// Locking: each manager guards its own state with its own mutex, and a lock
// is never held across a call into another manager. A DailyChannel is the
// unit of sharing; every operation on it holds its private mutex.
package channel
