package sorter

// Reuse compares a new sort spec with the one that produced the current
// order. It returns how many leading keys of newKeys must be applied on
// top of the current order: newKeys[n:] is already realized.
//
// The walk runs backward over both specs, matching identical keys and
// skipping old keys that a remaining new key supersedes (same column, and
// ties on the new key imply ties on the old one). When an old key would
// still leak its tie-breaking into the result, exact is false and the
// caller must restart from the base order and apply all n == len(newKeys)
// keys.
func Reuse(newKeys, oldKeys []Key) (n int, exact bool) {
	i, j := len(newKeys)-1, len(oldKeys)-1
	var skipped []Key
walk:
	for i >= 0 && j >= 0 {
		switch {
		case newKeys[i].Type == None:
			i--
		case oldKeys[j].Type == None:
			j--
		case same(newKeys[i], oldKeys[j]):
			i--
			j--
		case supersededBy(oldKeys[j], newKeys[:i]):
			skipped = append(skipped, oldKeys[j])
			j--
		default:
			break walk
		}
	}
	for i >= 0 && newKeys[i].Type == None {
		i--
	}
	n = i + 1
	for ; j >= 0; j-- {
		if oldKeys[j].Type != None {
			skipped = append(skipped, oldKeys[j])
		}
	}
	for _, o := range skipped {
		if !supersededBy(o, newKeys[:n]) {
			return len(newKeys), false
		}
	}
	return n, true
}

func supersededBy(o Key, keys []Key) bool {
	for _, k := range keys {
		if k.Type != None && refines(k, o) {
			return true
		}
	}
	return false
}
