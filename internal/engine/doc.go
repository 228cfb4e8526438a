// Package engine implements the histcore history engine.
//
// The engine is the single writer of the durable store. It records
// navigations, links them into redirect and opener graphs, answers history
// queries, and reports every change to its Delegate as a history.Event.
//
// ARCHITECTURE:
//
// Single-Writer Sequence:
// Every Engine method runs on the engine sequence owned by the service
// facade. Nothing in this package takes a lock; the visit tracker, the
// recent-redirects cache and the failure flag are only touched from that
// sequence. This ensures:
// - Visit ids handed out by the tracker are always older than new visits
// - Aggregates are recomputed in the same transaction as the visit write
// - Events reach the delegate in commit order
//
// Recording Flow:
// 1. AddPage checks the recording policy and canonicalizes the URL
// 2. The tracker resolves the referring and opener visits
// 3. The redirect chain is written inside one store transaction
// 4. URL aggregates are recomputed from the visits table
// 5. After commit the collected events are passed to the delegate
//
// Failure Model:
// A store error is fatal. The engine logs it, calls Delegate.ProfileError
// exactly once, refuses further mutations with ErrFailed and answers every
// query with an empty result.
//
// CRITICAL PATTERNS:
//
// Ids Not Pointers:
// Visits reference each other by VisitID only. Graph walks go through the
// resolver package, which reads the store.
//
// Events After Commit:
// Events are collected while a transaction runs and emitted only once it
// committed, so a rolled back write is never observed.
package engine
