// Package ir holds the value model shared by the compiler, engine and store:
// topology definitions, journal records, canonical JSON and content hashes.
//
// Canonical JSON follows RFC 8785 for the value kinds used here (no floats,
// no null). Hashes are SHA-256 over a domain prefix, a zero byte and the
// canonical bytes, so a topology hash identifies a session's wiring exactly.
package ir
