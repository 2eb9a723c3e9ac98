// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

// Package keys derives deterministic surrogate keys from natural keys.
//
// A key is SHA-256 over the domain, a NUL separator, and each part encoded
// as a presence byte, a big-endian length and the part's text. The result
// depends only on the ordered inputs, so rebuilding a dimension from
// unchanged bronze rows reproduces the same keys in any process.
package keys

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"hash"

	"github.com/tomtom215/gamebot/internal/snapshot"
)

// SurrogateKey is a hex-encoded SHA-256 digest.
type SurrogateKey string

// String returns the hex digest.
func (k SurrogateKey) String() string { return string(k) }

// ErrEmptyDomain is returned when a key is derived without a domain.
var ErrEmptyDomain = errors.New("surrogate key domain must not be empty")

const (
	partNull    byte = 0
	partPresent byte = 1
)

// DeriveKey derives the key of domain for the given ordered parts. An empty
// domain panics; use Derive for input that is not known to be valid.
func DeriveKey(domain string, parts ...string) SurrogateKey {
	h := newDigest(domain)
	for _, p := range parts {
		writePart(h, partPresent, p)
	}
	return finish(h)
}

// Derive derives a key from values. NULL parts hash differently from empty
// text; values of different kinds with the same text form hash equally, so
// an INTEGER season and a TEXT season reference the same entity.
func Derive(domain string, values ...snapshot.Value) (SurrogateKey, error) {
	if domain == "" {
		return "", ErrEmptyDomain
	}
	h := newDigest(domain)
	for _, v := range values {
		if v.IsNull() {
			writePart(h, partNull, "")
			continue
		}
		writePart(h, partPresent, v.String())
	}
	return finish(h), nil
}

func newDigest(domain string) hash.Hash {
	if domain == "" {
		panic(ErrEmptyDomain)
	}
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	return h
}

func writePart(h hash.Hash, tag byte, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write([]byte{tag})
	h.Write(n[:])
	h.Write([]byte(s))
}

func finish(h hash.Hash) SurrogateKey {
	return SurrogateKey(hex.EncodeToString(h.Sum(nil)))
}
