package domain

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
)

// MaxPointID is the exclusive upper bound of derived point ids (2^31 - 1).
const MaxPointID = 1<<31 - 1

// DerivePointID maps an entity key and chunk position to a stable point id.
// The composite "<key>_<index:%03d>" is hashed with MD5; the first four bytes
// are read big-endian and reduced modulo 2^31-1. Distinct pairs may collide.
func DerivePointID(entityKey string, chunkIndex int) uint64 {
	composite := fmt.Sprintf("%s_%03d", entityKey, chunkIndex)
	sum := md5.Sum([]byte(composite))
	return uint64(binary.BigEndian.Uint32(sum[:4])) % MaxPointID
}
