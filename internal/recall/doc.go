// Package recall implements recycling containers and recall ids, the
// context graph of the recall engine.
//
// A Container is the window of recyclings one playback context runs over.
// Containers form a tree mirroring the audio routing: an output context owns
// its input context, which owns one voice context per sounding note. Each
// container is scoped to exactly one recall ID.
//
// # Copy on write
//
// Structural changes never resize a container. Add, Remove, Insert and
// ResetRecycling build a new container and, for resets, publish it by
// swapping the parent's child slot and rebinding the recall id. Readers
// therefore observe either the complete old or the complete new window.
//
// # Locking
//
// Each container has its own mutex. Go has no recursive mutex, so exported
// methods lock and unexported *Locked helpers assume the caller holds the
// lock. Tree mutations (AddChild, RemoveChild, the parent splice of a reset,
// ID.Release) are serialized by one package-level mutex; only its holder
// takes more than one container lock at a time.
//
// # Reset inference
//
// ResetRecycling infers whether the new range extends the old one (splice,
// slot indices reused) or replaces it wholesale (graft). A splice requires
// the old bounds to be present in the container and the new range to sit
// between the surviving neighbours; a nil old pair is an insertion located
// at the front, at the back, or by chain distance from the first slot.
// Anything else grafts. ResetRecyclingMode takes the decision explicitly.
package recall
