package updater

// imageSet is a multiset of image identifiers. Compose reports one line per
// container, so an image backing two containers counts twice and a change in
// replica count alone is visible in the comparison.
type imageSet map[string]int

func newImageSet() imageSet {
	return make(imageSet)
}

// Add counts one occurrence of an identifier.
func (s imageSet) Add(id string) {
	s[id]++
}

// Equal reports whether both multisets hold the same identifiers with the
// same multiplicities.
func (s imageSet) Equal(other imageSet) bool {
	if len(s) != len(other) {
		return false
	}

	for id, count := range s {
		if other[id] != count {
			return false
		}
	}

	return true
}

// Size is the total number of counted identifiers.
func (s imageSet) Size() int {
	total := 0
	for _, count := range s {
		total += count
	}

	return total
}
