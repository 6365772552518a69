package filterutil

// FastHashBetween implements the djb2 hash algorithm for str[begin:end].
func FastHashBetween(str string, begin, end int) (hash uint32) {
	hash = uint32(5381)
	for i := begin; i < end; i++ {
		hash = (hash * 33) ^ uint32(str[i])
	}

	return hash
}

// FastHash implements the djb2 hash algorithm.  The hash of an empty string
// is 0.
func FastHash(str string) (hash uint32) {
	if str == "" {
		return 0
	}

	return FastHashBetween(str, 0, len(str))
}

// KeyBetween returns the lookup key of str[begin:end]: its djb2 hash, except
// that 0 is reserved for empty index slots and is replaced by 1.
func KeyBetween(str string, begin, end int) (key uint32) {
	key = FastHashBetween(str, begin, end)
	if key == 0 {
		return 1
	}

	return key
}
