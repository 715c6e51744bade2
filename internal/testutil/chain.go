// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"

	"github.com/roach88/agsrecall/internal/recycling"
)

// Chain builds n linked recyclings named r0..r(n-1).
func Chain(n int) []*recycling.Recycling {
	return NamedChain("r", n)
}

// NamedChain builds n linked recyclings named prefix0..prefix(n-1).
func NamedChain(prefix string, n int) []*recycling.Recycling {
	recs := make([]*recycling.Recycling, n)
	for i := range recs {
		recs[i] = recycling.New(fmt.Sprintf("%s%d", prefix, i))
		if i > 0 {
			recycling.Link(recs[i-1], recs[i])
		}
	}
	return recs
}

// Names returns the node names, "<nil>" for empty slots.
func Names(recs []*recycling.Recycling) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Name()
	}
	return out
}

// Join renders recs as "r0 r1 r2".
func Join(recs []*recycling.Recycling) string {
	return strings.Join(Names(recs), " ")
}
