package tarstream

import "math"

const (
	// BlockSize is the TAR record alignment.
	BlockSize = 512

	// DefaultSizeCeiling is the default per-archive budget, 20 GiB.
	DefaultSizeCeiling int64 = 20 * 1024 * 1024 * 1024

	// Unlimited disables chunking: everything goes into a single archive.
	Unlimited int64 = math.MaxInt64
)

// USTAR field limits; values beyond them need a PAX extended header.
const (
	ustarNameLen = 100
	ustarMaxSize = 1<<33 - 1
	paxRecordPad = 32
)

// EntrySize estimates the number of uncompressed archive bytes an object
// occupies: its header block(s) plus the payload rounded up to BlockSize.
// The estimate is never smaller than what archive/tar emits for the entry.
func EntrySize(name string, size int64) int64 {
	header := int64(BlockSize)

	var pax int64
	if len(name) > ustarNameLen || !isASCII(name) {
		pax += int64(len("path=")+len(name)) + paxRecordPad
	}
	if size > ustarMaxSize {
		pax += int64(len("size=")) + paxRecordPad
	}
	if pax > 0 {
		header += BlockSize + alignBlock(pax)
	}

	return header + alignBlock(size)
}

// ShouldRotate reports whether the next entry must go into a new archive.
// written and entries describe the current archive; next is the EntrySize of
// the pending object. An archive with no entries never rotates, so an object
// larger than the ceiling ends up alone in its own archive. An Unlimited
// ceiling never rotates.
func ShouldRotate(written int64, entries int, next, ceiling int64) bool {
	if entries == 0 || ceiling == Unlimited {
		return false
	}
	return next > ceiling-written
}

func alignBlock(n int64) int64 {
	if r := n % BlockSize; r != 0 {
		return n + BlockSize - r
	}
	return n
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
