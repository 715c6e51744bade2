// Package compiler turns CUE topology definitions into ir.Topology values,
// validates them and builds the channel graph they describe.
package compiler
