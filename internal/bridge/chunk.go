package bridge

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// HardCeiling is the platform's absolute message size limit;
	// responses beyond it are truncated before chunking.
	HardCeiling = 65000

	// truncateTarget is the size truncated responses are cut to,
	// marker included.
	truncateTarget = 64900

	// TruncationMarker is appended to truncated responses so the user
	// can see the reply was cut.
	TruncationMarker = "\n\n[message truncated]"
)

// Truncate caps text at the platform ceiling, appending a visible
// marker. The returned text never exceeds truncateTarget and the cut
// never lands inside a multi-byte rune.
func Truncate(text string) string {
	if len(text) <= HardCeiling {
		return text
	}
	cut := runeSafeCut(text, truncateTarget-len(TruncationMarker))
	return text[:cut] + TruncationMarker
}

// runeSafeCut backs a byte offset up to the nearest rune boundary.
func runeSafeCut(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// Chunk splits text into transport-safe pieces of at most maxLen,
// preferring natural boundaries. Pure and restartable: no side effects.
// When more than one chunk results, each is prefixed with "(i/n) ",
// and the prefix is budgeted so no chunk exceeds maxLen.
func Chunk(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	// Reserve room for the "(i/n) " prefix and re-split; a larger
	// prefix can add chunks, which can widen the prefix again, so
	// iterate until the width is stable. The width only ever grows
	// and is bounded, so this terminates.
	var chunks []string
	room := 0
	for {
		window := maxLen - room
		if window < 1 {
			window = 1
		}
		chunks = splitAtBoundaries(text, window)
		widest := len(fmt.Sprintf("(%d/%d) ", len(chunks), len(chunks)))
		if widest == room {
			break
		}
		room = widest
	}

	if len(chunks) == 1 {
		return chunks
	}
	for i := range chunks {
		chunks[i] = fmt.Sprintf("(%d/%d) %s", i+1, len(chunks), chunks[i])
	}
	return chunks
}

// splitAtBoundaries walks the text splitting backward from maxLen:
// paragraph break past 50% of the window, else line break past 30%,
// else a space past 20%, else a hard cut.
func splitAtBoundaries(text string, maxLen int) []string {
	var chunks []string
	rem := text

	for len(rem) > maxLen {
		window := rem[:maxLen]

		cut := -1
		if idx := strings.LastIndex(window, "\n\n"); idx > maxLen/2 {
			cut = idx
		} else if idx := strings.LastIndex(window, "\n"); idx > maxLen*3/10 {
			cut = idx
		} else if idx := strings.LastIndex(window, " "); idx > maxLen/5 {
			cut = idx
		}

		var piece string
		if cut < 0 {
			// Hard cut: back up so the slice never lands mid-rune.
			n := runeSafeCut(rem, maxLen)
			if n == 0 {
				n = maxLen
			}
			piece = rem[:n]
			rem = rem[n:]
		} else {
			piece = window[:cut]
			rem = rem[cut:]
		}

		piece = strings.TrimSpace(piece)
		if piece != "" {
			chunks = append(chunks, piece)
		}
		rem = strings.TrimLeft(rem, " \t\n")
	}

	rem = strings.TrimSpace(rem)
	if rem != "" {
		chunks = append(chunks, rem)
	}
	return chunks
}
