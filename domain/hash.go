package domain

import "strconv"

// fnvHash is a 32-bit FNV-1 hash (multiply, then xor), used here to derive stable,
// order-independent fingerprints from small string sets.
func fnvHash(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h *= 16777619
		h ^= uint32(s[i])
	}
	return h
}

func itoaHash(h uint32) string {
	return strconv.FormatUint(uint64(h), 16)
}
