package batcher

import "hash/crc32"

// decodeHashCode derives the hash-partitioning code recorded onto
// hash-partitioned ops at Add time (spec.md §4.1). The exact hash
// function is an implementation detail of the table's partitioning
// scheme in the real system; this module uses crc32 truncated to 16
// bits, which is stable and sufficient for routing-identity purposes.
func decodeHashCode(partitionKey []byte) uint16 {
	return uint16(crc32.ChecksumIEEE(partitionKey) & 0xffff)
}
