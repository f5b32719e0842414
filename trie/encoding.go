package trie

// Keys inside the trie are walked as nibble sequences. Node keys arrive in
// hex-prefix (compact) form, whose first nibble carries the leaf flag (0x2)
// and the odd-length flag (0x1). Expanded keys end with terminatorNibble.

const terminatorNibble = 16

// keybytesToHex expands a raw key into nibbles followed by the terminator.
func keybytesToHex(key []byte) []byte {
	l := len(key)*2 + 1
	nibbles := make([]byte, l)
	for i, b := range key {
		nibbles[i*2] = b / 16
		nibbles[i*2+1] = b % 16
	}
	nibbles[l-1] = terminatorNibble
	return nibbles
}

// compactToHex expands a hex-prefix encoded node key. Leaf keys come back
// with the terminator appended.
func compactToHex(compact []byte) []byte {
	if len(compact) == 0 {
		return compact
	}
	base := keybytesToHex(compact)
	base = base[:len(base)-1]
	if base[0]&2 != 0 {
		base = append(base, terminatorNibble)
	}
	// Even-length keys carry one padding nibble after the flags.
	chop := 2 - base[0]&1
	return base[chop:]
}

// hasTerm reports whether the nibble sequence is a leaf key.
func hasTerm(s []byte) bool {
	return len(s) > 0 && s[len(s)-1] == terminatorNibble
}

func nibblesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
