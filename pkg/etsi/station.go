package etsi

import (
	"crypto/sha256"
	"encoding/hex"
)

// StationID derives the 24-bit ITS station identifier carried in every
// CAM/DENM/CPM header from a stable vehicle/station UUID: the first six
// hex characters (24 bits) of the SHA-256 digest of the UUID string,
// interpreted as an unsigned integer.
func StationID(uuid string) uint32 {
	sum := sha256.Sum256([]byte(uuid))
	hexDigest := hex.EncodeToString(sum[:])
	var id uint32
	for _, c := range hexDigest[:6] {
		id <<= 4
		switch {
		case c >= '0' && c <= '9':
			id |= uint32(c - '0')
		case c >= 'a' && c <= 'f':
			id |= uint32(c-'a') + 10
		}
	}
	return id
}
