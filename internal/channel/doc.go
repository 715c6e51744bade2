// Package channel implements the audio/channel layer the recall engine runs
// over.
//
// An Audio has output and input lines grouped in pads of AudioChannels lines.
// Every line owns one recycling and the lines of one orientation form a
// recycling chain in pad order. Structural changes (pads added or removed,
// inputs linked to another audio's output) are reported to observers as a
// Change carrying the old and new recycling ranges, which the engine turns
// into container resets.
package channel
