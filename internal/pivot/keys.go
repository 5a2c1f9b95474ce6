package pivot

import (
	"slices"
	"strings"

	xxhash "github.com/cespare/xxhash/v2"
)

// keySep joins key path elements into the flat form that is hashed.
const keySep = "\x00"

func flatKey(key []string) string {
	return strings.Join(key, keySep)
}

// keyIndex assigns dense ids to distinct key paths in first-seen order.
// Paths are bucketed by the xxhash of their flat form.
type keyIndex struct {
	buckets map[uint64][]int
	keys    [][]string
}

func newKeyIndex() *keyIndex {
	return &keyIndex{buckets: make(map[uint64][]int)}
}

func (ki *keyIndex) find(key []string) (int, bool) {
	for _, id := range ki.buckets[xxhash.Sum64String(flatKey(key))] {
		if slices.Equal(ki.keys[id], key) {
			return id, true
		}
	}
	return -1, false
}

// insert returns the id of key, adding it when new.
func (ki *keyIndex) insert(key []string) (int, bool) {
	hash := xxhash.Sum64String(flatKey(key))
	for _, id := range ki.buckets[hash] {
		if slices.Equal(ki.keys[id], key) {
			return id, false
		}
	}
	id := len(ki.keys)
	ki.keys = append(ki.keys, key)
	ki.buckets[hash] = append(ki.buckets[hash], id)
	return id, true
}

func (ki *keyIndex) size() int {
	return len(ki.keys)
}
