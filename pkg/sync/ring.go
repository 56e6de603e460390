package sync

import (
	"encoding/binary"
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring is a consistent hash ring over the indexes [0, size).
type ring struct {
	hashRing *treemap.Map

	// minIndex caches the index of the smallest hash, which keys past the
	// largest hash wrap around to.
	minIndex int
}

func newRing(prefix string, size int, replicationFactor uint) *ring {
	hashRing := treemap.NewWith(utils.Int64Comparator)
	for index := 0; index < size; index++ {
		keyHash, _ := murmur3.Sum128([]byte(fmt.Sprintf("%s%d", prefix, index)))
		keyHashBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(keyHashBytes, keyHash)

		for i := 0; i < int(replicationFactor); i++ {
			hasher := murmur3.New128()
			hasher.Write(keyHashBytes)
			indexBytes := make([]byte, 4)
			binary.LittleEndian.PutUint32(indexBytes, uint32(i))
			hasher.Write(indexBytes)
			hash, _ := hasher.Sum128()
			hashRing.Put(int64(hash), index)
		}
	}

	r := &ring{hashRing: hashRing}
	if _, minIndex := hashRing.Min(); minIndex != nil {
		r.minIndex = minIndex.(int)
	}
	return r
}

// shard consistently maps the key onto an index.
func (r *ring) shard(key string) int {
	hasher := murmur3.New128()
	hasher.Write([]byte(key))
	raw, _ := hasher.Sum128()

	_, index := r.hashRing.Ceiling(int64(raw))
	if index != nil {
		return index.(int)
	}
	return r.minIndex
}
