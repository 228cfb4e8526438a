// Package history provides the domain types shared by every histcore package.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import history; history imports nothing internal.
//
// Key design constraints:
//   - Records reference each other by integer id (URLID, VisitID, ClusterID),
//     never by pointer. The store resolves ids.
//   - A zero time.Time means "unset" and is persisted as 0.
//   - Events are immutable values. They cross from the engine sequence to the
//     caller sequence and are dispatched through the Observer interface.
package history
