// Package harness runs scripted playback scenarios against the engine and
// checks the resulting recall context tree.
//
// # Scenario Format
//
// Scenarios are defined in YAML files:
//
//	name: link_resets_in_place
//	description: "Linking an input line resets the contexts holding it"
//	topology: topology.cue
//	steps:
//	  - task: start_playback
//	    args: { audio: synth }
//	  - midi: "90 3d 64"
//	    audio: synth
//	  - task: link
//	    args: { input: synth, input_line: 1, output: osc, output_line: 0 }
//	  - task: note_on
//	    args: { audio: osc, pad: 0 }
//	    expect_error: NOT_PLAYING
//	assertions:
//	  - type: context_contains
//	    context: ctx-2
//	    recycling: ["synth.i1.2<osc.o0"]
//	  - type: tree_consistent
//
// # Assertion Types
//
//   - context_length: a context's container has exactly length slots
//   - context_contains: a context's container holds the named recyclings
//   - live_contexts: exactly count contexts are live
//   - tree_consistent: container parent/child edges mirror the context tree
//   - voices: an audio's voices sound on the given pads, in start order
//   - reset_count: the journal holds count resets, optionally for one context
//
// # Deterministic Testing
//
// Recall ids come from a sequence generator (ctx-1, ctx-2, ...), the
// journal is an in-memory SQLite store and seqs come from the engine's
// logical clock, so a scenario always produces the same snapshot.
// RunWithGolden compares that snapshot against testdata/golden with goldie.
package harness
