package model

import "unicode/utf8"

func runeWidth(r rune) int {
	if r > 0xFFFF {
		return 2
	}
	return 1
}

// OffsetAt converts a position to a byte offset in text. Positions past the
// end of a line clamp to the line end; positions past the text clamp to
// len(text).
func OffsetAt(text string, pos Position) int {
	line, char := 0, 0
	for off := 0; off < len(text); {
		if line == pos.Line && char >= pos.Character {
			return off
		}
		r, size := utf8.DecodeRuneInString(text[off:])
		if r == '\n' {
			if line == pos.Line {
				return off
			}
			line++
			char = 0
		} else {
			char += runeWidth(r)
		}
		off += size
	}
	return len(text)
}

// PositionAt converts a byte offset to a position.
func PositionAt(text string, offset int) Position {
	if offset > len(text) {
		offset = len(text)
	}
	var pos Position
	for off := 0; off < offset; {
		r, size := utf8.DecodeRuneInString(text[off:])
		if r == '\n' {
			pos.Line++
			pos.Character = 0
		} else {
			pos.Character += runeWidth(r)
		}
		off += size
	}
	return pos
}

// EndPosition returns the position just past the last character of text.
func EndPosition(text string) Position {
	return PositionAt(text, len(text))
}

// Slice returns the text covered by r.
func Slice(text string, r Range) string {
	start, end := OffsetAt(text, r.Start), OffsetAt(text, r.End)
	if end < start {
		return ""
	}
	return text[start:end]
}
