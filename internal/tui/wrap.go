package tui

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	wrongSpaceGlyph = '•'
	newlineGlyph    = '↵'
)

type styledRune struct {
	s         string
	width     int
	isSpace   bool
	isNewline bool
}

// buildStyledRunes renders the target with typed runes colored by
// correctness. Typed runes past the end of the target are shown as errors.
func buildStyledRunes(target, typed []rune, cursor int) []styledRune {
	wordStart, wordEnd := activeWord(target, cursor)
	out := make([]styledRune, 0, max(len(target), len(typed)))
	for i, want := range target {
		glyph, style := want, pendingStyle
		if want == '\n' {
			glyph = newlineGlyph
		}
		switch {
		case i < len(typed) && typed[i] == want:
			style = correctStyle
		case i < len(typed):
			style = incorrectStyle
			if want == ' ' {
				glyph = wrongSpaceGlyph
			}
		case i >= wordStart && i < wordEnd:
			style = currentWordStyle
		}
		if i == cursor && i >= len(typed) {
			style = style.Underline(true)
		}
		out = append(out, newStyledRune(glyph, style, want))
	}
	for _, extra := range typed[min(len(target), len(typed)):] {
		if unicode.IsSpace(extra) {
			extra = wrongSpaceGlyph
		}
		out = append(out, newStyledRune(extra, incorrectStyle, extra))
	}
	return out
}

func newStyledRune(glyph rune, style lipgloss.Style, source rune) styledRune {
	return styledRune{
		s:         style.Render(string(glyph)),
		width:     runewidth.RuneWidth(glyph),
		isSpace:   source == ' ',
		isNewline: source == '\n',
	}
}

// activeWord returns the rune span of the word under the cursor, or the next
// word after it. A negative cursor selects the first word; a cursor past the
// last word selects the last one. The span is empty when target has no words.
func activeWord(target []rune, cursor int) (start, end int) {
	start, end = -1, -1
	for i := 0; i <= len(target); i++ {
		inWord := i < len(target) && !unicode.IsSpace(target[i])
		switch {
		case inWord && (i == 0 || unicode.IsSpace(target[i-1])):
			start = i
		case !inWord && start >= 0 && end < start:
			end = i
			if cursor < end {
				return start, end
			}
		}
	}
	if start < 0 {
		return 0, 0
	}
	return start, end
}

func renderStyledRunes(runes []styledRune) string {
	var b strings.Builder
	for _, item := range runes {
		b.WriteString(item.s)
		if item.isNewline {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// wrapStyledRunes breaks lines at the last space that fits in width and
// always after a newline rune.
func wrapStyledRunes(runes []styledRune, width int) string {
	if width <= 0 {
		return renderStyledRunes(runes)
	}
	lines := splitLines(runes, width)
	var out strings.Builder
	for i, line := range lines {
		out.WriteString(renderStyledRunes(line))
		if i < len(lines)-1 && !endsWithNewline(line) {
			out.WriteByte('\n')
		}
	}
	return out.String()
}

func splitLines(runes []styledRune, width int) [][]styledRune {
	var lines [][]styledRune
	var line []styledRune
	used := 0
	for _, item := range runes {
		for used+item.width > width && len(line) > 0 {
			cut := lastSpace(line)
			if cut < 0 {
				lines = append(lines, line)
				line = nil
			} else {
				lines = append(lines, line[:cut])
				line = append([]styledRune(nil), line[cut+1:]...)
			}
			used = widthOf(line)
		}
		line = append(line, item)
		used += item.width
		if item.isNewline {
			lines = append(lines, line)
			line, used = nil, 0
		}
	}
	return append(lines, line)
}

func endsWithNewline(line []styledRune) bool {
	return len(line) > 0 && line[len(line)-1].isNewline
}

func widthOf(line []styledRune) int {
	total := 0
	for _, item := range line {
		total += item.width
	}
	return total
}

func lastSpace(line []styledRune) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}
