// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scan

import "unicode/utf8"

// contextWindow returns the match text plus up to width characters on
// each side, clipped at the string boundaries. Offsets are byte
// positions; the window walks runes so multi-byte text never gets cut
// mid-character.
func contextWindow(text string, start, end, width int) string {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}

	lo := start
	for i := 0; i < width && lo > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:lo])
		if size == 0 {
			break
		}
		lo -= size
	}

	hi := end
	for i := 0; i < width && hi < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[hi:])
		if size == 0 {
			break
		}
		hi += size
	}

	return text[lo:hi]
}
