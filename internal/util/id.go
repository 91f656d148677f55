// Package util holds small helpers shared across modules.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

const idBytes = 16

// NewID returns a random identifier such as "tkt_3f2a…". An empty prefix
// yields the bare hex string, used for opaque secrets.
func NewID(prefix string) string {
	buf := make([]byte, idBytes)
	_, _ = rand.Read(buf)
	if prefix == "" {
		return hex.EncodeToString(buf)
	}
	return prefix + "_" + hex.EncodeToString(buf)
}
