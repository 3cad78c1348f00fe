package partitioner

import (
	"hash/fnv"
)

// HashFnv hashes a key with 64-bit FNV-1a.
func HashFnv(key string) uint64 {
	h := fnv.New64a()
	// fnv's Write never returns an error
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}
