// Package store provides the SQLite journal of an engine session.
//
// The journal records:
//   - Tasks: every task the engine applied, with its canonical arguments
//   - Contexts: when each recall context started and stopped, and its parent
//   - Resets: every container reset, with the window length before and after
//   - Meta: session attributes such as the topology hash
//
// All ordering uses seq values from the engine's logical clock, never wall
// time, so a journal reads back identically however fast it was written.
//
// # Database Configuration
//
//   - WAL mode: trace can read while play writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: resets must reference a journaled context
package store
