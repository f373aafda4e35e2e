// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package crc16_test

import (
	"testing"

	"code.hybscloud.com/erpc/crc16"
)

func TestChecksumKnownVector(t *testing.T) {
	t.Parallel()

	// CRC-16/CCITT-FALSE check value for the standard "123456789" test
	// vector, seeded with 0xFFFF (spec §8, scenario 2).
	got := crc16.Checksum([]byte("123456789"), 0xFFFF)
	if got != 0x29B1 {
		t.Fatalf("checksum=%#04x want=0x29b1", got)
	}
}

func TestChecksumDefaultSeedIsStable(t *testing.T) {
	t.Parallel()

	a := crc16.Checksum([]byte("123456789"), crc16.DefaultSeed)
	b := crc16.Checksum([]byte("123456789"), crc16.DefaultSeed)
	if a != b {
		t.Fatalf("non-deterministic checksum: %#04x vs %#04x", a, b)
	}
}

func TestChecksumPartitioningInvariant(t *testing.T) {
	t.Parallel()

	data := []byte("the quick brown fox jumps over the lazy dog")
	whole := crc16.Checksum(data, crc16.DefaultSeed)

	for split := 0; split <= len(data); split++ {
		mid := crc16.Checksum(data[:split], crc16.DefaultSeed)
		got := crc16.Update(mid, data[split:])
		if got != whole {
			t.Fatalf("split=%d: got=%#04x want=%#04x", split, got, whole)
		}
	}
}

func TestEngineDefaultSeedNonZero(t *testing.T) {
	t.Parallel()

	c := crc16.New()
	// Zeroed buffers must not produce a zero CRC, so a peer that forgot to
	// run the algorithm is detectable (spec §4.3).
	if got := c.Compute(make([]byte, 16)); got == 0 {
		t.Fatalf("zeroed payload produced zero CRC with default seed")
	}
}

func TestEngineSeededMatchesChecksum(t *testing.T) {
	t.Parallel()

	c := crc16.NewSeeded(0xFFFF)
	got := c.Compute([]byte("123456789"))
	want := crc16.Checksum([]byte("123456789"), 0xFFFF)
	if got != want {
		t.Fatalf("engine=%#04x checksum=%#04x", got, want)
	}
}
