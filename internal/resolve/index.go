package resolve

// Index maps normalized target names to the original names that share the
// normalization. Keys and bucket contents keep first-seen order.
type Index struct {
	keys    []string
	buckets map[string][]string
}

// BuildIndex normalizes every target name and groups originals by their
// normalized form. Empty names, repeated originals, and names that normalize
// to nothing are skipped.
func BuildIndex(n *Normalizer, names []string) *Index {
	idx := &Index{
		buckets: make(map[string][]string, len(names)),
	}

	seen := make(map[string]struct{}, len(names))
	for _, original := range names {
		if original == "" {
			continue
		}
		if _, dup := seen[original]; dup {
			continue
		}
		seen[original] = struct{}{}

		key := n.Normalize(original)
		if key == "" {
			continue
		}
		if _, ok := idx.buckets[key]; !ok {
			idx.keys = append(idx.keys, key)
		}
		idx.buckets[key] = append(idx.buckets[key], original)
	}

	return idx
}

// Keys returns the normalized universe in first-seen order.
func (idx *Index) Keys() []string {
	return idx.keys
}

// Len returns the number of distinct normalized names.
func (idx *Index) Len() int {
	return len(idx.keys)
}

// Originals returns the original names sharing the normalized key.
func (idx *Index) Originals(key string) []string {
	return idx.buckets[key]
}

// Expand concatenates the buckets of the given keys, in order.
func (idx *Index) Expand(keys []string) []string {
	var out []string
	for _, k := range keys {
		out = append(out, idx.buckets[k]...)
	}
	return out
}
