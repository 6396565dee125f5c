package report

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the longest message a chat sink accepts.
const MaxMessageLength = 2000

// Chunk packs lines into messages no longer than limit. The first message
// starts with header, later ones with continued. Lines that cannot fit after
// either prefix are cut at a rune boundary first.
func Chunk(header, continued string, lines []string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	room := limit - max(len(header), len(continued))
	if room < utf8.UTFMax {
		room = utf8.UTFMax
	}

	var out []string
	msg := header
	fresh := true
	for _, line := range lines {
		for _, piece := range cut(line, room) {
			if !fresh && len(msg)+len(piece) > limit {
				out = append(out, msg)
				msg = continued
				fresh = true
			}
			msg += piece
			fresh = false
		}
	}
	return append(out, msg)
}

// Split breaks text on line boundaries into pieces no longer than limit.
// Lines longer than limit are cut at a rune boundary.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	if len(text) <= limit {
		return []string{text}
	}
	return Chunk("", "", strings.SplitAfter(text, "\n"), limit)
}

// cut splits line into pieces of at most n bytes without breaking a rune.
func cut(line string, n int) []string {
	var pieces []string
	for len(line) > n {
		at := n
		for at > 1 && !utf8.RuneStart(line[at]) {
			at--
		}
		pieces = append(pieces, line[:at])
		line = line[at:]
	}
	if line != "" {
		pieces = append(pieces, line)
	}
	return pieces
}
