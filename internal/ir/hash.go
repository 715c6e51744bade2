package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
const (
	DomainTopology = "agsrecall/topology/v1"
	DomainTask     = "agsrecall/task/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TopologyHash returns the content hash of a topology. Two topologies with
// the same audios and links hash equal regardless of declaration order.
func TopologyHash(t Topology) (string, error) {
	canonical, err := MarshalCanonical(t.Value())
	if err != nil {
		return "", fmt.Errorf("topology hash: %w", err)
	}
	return hashWithDomain(DomainTopology, canonical), nil
}

// TaskID returns the content-addressed id of a journaled task.
func TaskID(kind string, args Object, seq int64) (string, error) {
	canonical, err := MarshalCanonical(Object{
		"kind": Str(kind),
		"args": args,
		"seq":  Int(seq),
	})
	if err != nil {
		return "", fmt.Errorf("task id: %w", err)
	}
	return hashWithDomain(DomainTask, canonical), nil
}
