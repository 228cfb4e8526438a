// Package store provides SQLite-backed durable storage for browsing history.
//
// The store holds:
//   - URLs: one row per distinct URL with visit aggregates
//   - Visits: one row per recorded navigation, linked by id into the
//     referrer/redirect/opener graph
//   - Keyword search terms, context and content annotations
//   - Clusters with their visits and keywords
//
// # Critical Patterns
//
// Aggregates are derived, never incremented:
//   - visit_count, typed_count and last_visit are recomputed from the visits
//     table by RecomputeURL inside the transaction that changed the visits
//
// Graph by id:
//   - referring_visit and opener_visit are plain integer columns, not foreign
//     keys, so deleting a visit leaves a dangling id that readers tolerate
//   - AUTOINCREMENT ids never repeat, so a reference always points backward
//
// Deterministic query results:
//   - Every multi-row read has a total ORDER BY ending in id
//   - Reads return empty slices, never nil
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Cascades remove annotations and cluster visits
//
// Every method is available on both *Store and *Tx. Multi-row mutations
// should run through Store.Update so a failure leaves the store untouched.
package store
