// Package engine plays audios over the recall context graph.
//
// The engine owns the live recall contexts. StartPlayback creates an output
// context with an input context as its child; every NoteOn nests a voice
// context over one input pad below the input context. Each context is a
// recall.ID bound to a recall.Container, and the container tree mirrors the
// context tree.
//
// ARCHITECTURE:
//
// Single-Writer Task Loop:
// Tasks are applied one at a time, either from Run (fed by Enqueue) or
// synchronously through Apply. Each task:
//  1. is stamped with a seq from the logical clock
//  2. is applied to the channel graph or the context tree
//  3. has its topology changes propagated to the affected contexts
//  4. is journaled, with its error if it failed
//
// Propagation:
// Channel notifies the engine of Replaced, Inserted and Removed changes.
// Replaced and Inserted reset affected containers with an inferred splice;
// Removed grafts chain contexts onto the remaining chain and stops voices
// holding removed recyclings. A reset keeps the recall id, so runs that
// resolve through the id see the new window on their next Render.
//
// Render may be called from an audio thread at any time. It only reads
// containers through their recall ids and never blocks on task processing.
package engine
