// Package harness runs scripted factory scenarios end to end.
//
// A scenario starts a session on an empty game in a fresh in-memory store,
// applies its steps through the session so every accepted edit is
// journaled, then checks the final game and replays the journal to prove
// the same state comes back.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	inventory: { iron: 20 }
//	steps:
//	  - time: 0
//	    build: { type: iron_mine, x: 0, y: 0 }
//	  - time: 100
//	    rotate: { path: "/(0,0)", facing: "+y" }
//	  - undo: true
//	  - time: 200
//	    remove: { path: "/(9,9)" }
//	    expect_error: INVALID_PATH
//	timeline: [0, 600, 1200]
//	assertions:
//	  - type: inventory_at
//	    time: 1200
//	    inventory: { iron: 10, iron_ore: 18 }
//	  - type: machine_state
//	    path: "/(0,0)"
//	    state: operating
//
// Build steps name either a preset (type) or a module defined by an earlier
// module step (module). Paths use the "/(x,y)/(x,y)" form.
//
// # Assertion Types
//
//   - inventory_at: the inventory at a time matches exactly
//   - machine_state: a machine reports the given operating state
//   - journal_count: the session journaled exactly count edits
//   - variations: the future holds count module variations
//
// # Golden Files
//
// The inventory timeline and global machine states are compared against
// testdata/golden/<name>.golden in canonical JSON.
package harness
