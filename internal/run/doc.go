// Package run implements the recall run nodes that render audio for a
// playback context.
//
// Run nodes are duplicated per recall id. They resolve the recyclings to
// process through the id's current container, so a container reset is picked
// up on the next tick without re-duplicating. Resolution copies references
// out under the container lock; mixing happens outside it.
package run
