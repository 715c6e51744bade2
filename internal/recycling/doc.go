// Package recycling implements recycling nodes, the leaves of the audio
// graph.
//
// A Recycling owns the audio signals of one channel slice and is doubly
// linked to its siblings in pad order. Channels own the chain; recycling
// containers reference ranges of it.
package recycling
