// Package ui implements the sync monitor, an interactive terminal interface using bubbletea's Elm architecture.
//
// The monitor has three views:
//  1. [RunListView] : Browse the run ledger, newest first, with the subsystem status above it
//  2. [RunDetailView] : Inspect one run, including matched request IDs and the error text
//  3. [SyncView] : Watch a manual sync's real-time progress updates
//
// The [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the sync engine, providing non-blocking status reporting during runs.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, s, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
