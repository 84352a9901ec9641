// Package core defines the domain model shared by the balgil client packages.
//
// # Contents
//
// The core package provides:
//   - Screen identifiers understood by the screen navigator
//   - User modes and their indicator icons
//   - Route, Point and SessionState records persisted by the data collector
//   - A circuit breaker guarding outbound sync uploads
//
// Types here carry no I/O. Persistence lives in the collector and storage
// packages; transport lives in collector and social.
package core
