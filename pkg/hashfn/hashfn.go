// Package hashfn implements the four selectable digest functions used to
// map keys onto the continuum: MD5 (Ketama's native choice), FNV-1, FNV-1a,
// and CRC-32. Each is a pure function from a byte string to a uint32 and is
// deterministic across platforms.
package hashfn

import (
	"crypto/md5"
	"hash/crc32"
	"hash/fnv"
)

// Name identifies one of the selectable hash functions.
type Name string

const (
	MD5  Name = "md5"
	FNV1 Name = "fnv1"

	FNV1A Name = "fnv1a"
	CRC32 Name = "crc32"
)

// Func is a pure digest function from a key to a 32-bit hash.
type Func func(key []byte) uint32

// Resolve returns the Func for name, defaulting to MD5 (matching Ketama)
// when name is empty or unrecognized.
func Resolve(name Name) Func {
	switch name {
	case FNV1:
		return FNV1Hash
	case FNV1A:
		return FNV1AHash
	case CRC32:
		return CRC32Hash
	default:
		return MD5Hash
	}
}

// MD5Hash returns the low 4 bytes of the MD5 digest of key, read back
// little-endian-reversed — the same extraction Ketama uses so that
// continuum placement matches the reference memcached client ecosystem.
func MD5Hash(key []byte) uint32 {
	sum := md5.Sum(key)
	return uint32(sum[3])<<24 | uint32(sum[2])<<16 | uint32(sum[1])<<8 | uint32(sum[0])
}

// FNV1Hash is the 32-bit FNV-1 hash (multiply-then-xor).
func FNV1Hash(key []byte) uint32 {
	h := fnv.New32()
	_, _ = h.Write(key)
	return h.Sum32()
}

// FNV1AHash is the 32-bit FNV-1a hash (xor-then-multiply).
func FNV1AHash(key []byte) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(key)
	return h.Sum32()
}

// CRC32Hash is the standard (IEEE) CRC-32 of key.
func CRC32Hash(key []byte) uint32 {
	return crc32.ChecksumIEEE(key)
}

// md5Digest exposes the raw 16-byte MD5 digest, used by the continuum to
// derive 4 virtual points per bucket from a single digest (spec.md 4.3).
func md5Digest(s string) [md5.Size]byte {
	return md5.Sum([]byte(s))
}

// MD5Digest is the exported form of md5Digest for package continuum.
func MD5Digest(s string) [16]byte {
	return md5Digest(s)
}
