// Package storage persists fetched trending snapshots so recent data
// survives restarts and stays inspectable.
//
// Two backends exist:
//   - sqlite: one database file, snapshots retained per feed up to a cap
//   - file: one JSON file per (tab, sub_tab), overwritten on every fetch
//
// Both prune automatically; there is no unbounded growth.
package storage
