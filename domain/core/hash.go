package core

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint identifies the content of a numeric dataset snapshot
type Fingerprint string

// String returns the string representation
func (f Fingerprint) String() string {
	return string(f)
}

// IsEmpty checks if the fingerprint is empty
func (f Fingerprint) IsEmpty() bool {
	return f == ""
}

// FingerprintBuilder accumulates column names and values into a stable digest
type FingerprintBuilder struct {
	digest *xxhash.Digest
	buf    [8]byte
}

// NewFingerprintBuilder creates an empty builder
func NewFingerprintBuilder() *FingerprintBuilder {
	return &FingerprintBuilder{digest: xxhash.New()}
}

// WriteString adds a length-prefixed string
func (b *FingerprintBuilder) WriteString(s string) {
	binary.LittleEndian.PutUint64(b.buf[:], uint64(len(s)))
	_, _ = b.digest.Write(b.buf[:])
	_, _ = b.digest.WriteString(s)
}

// WriteFloat adds the IEEE-754 bits of v
func (b *FingerprintBuilder) WriteFloat(v float64) {
	binary.LittleEndian.PutUint64(b.buf[:], math.Float64bits(v))
	_, _ = b.digest.Write(b.buf[:])
}

// WriteInt64 adds v
func (b *FingerprintBuilder) WriteInt64(v int64) {
	binary.LittleEndian.PutUint64(b.buf[:], uint64(v))
	_, _ = b.digest.Write(b.buf[:])
}

// Sum returns the fingerprint as 16 hex characters
func (b *FingerprintBuilder) Sum() Fingerprint {
	return Fingerprint(fmt.Sprintf("%016x", b.digest.Sum64()))
}
