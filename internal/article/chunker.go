package article

import "strings"

// chunkSeparators in priority order: paragraph breaks, line breaks, sentence
// enders in both scripts, then spaces, and finally rune-level splitting when
// nothing else fits.
var chunkSeparators = []string{"\n\n", "\n", "。", "！", "？", "；", ".", "!", "?", ";", " ", ""}

// Chunker splits article bodies recursively: try the coarsest separator
// first, recurse into oversized pieces with the next finer one, then merge
// adjacent pieces back up to Size runes with Overlap runes carried between
// consecutive chunks.
type Chunker struct {
	Size    int // max chunk size in runes
	Overlap int // runes carried over between consecutive chunks
	MinLen  int // fragments shorter than this are dropped
}

// NewChunker returns a Chunker with the tuning used for news bodies.
func NewChunker() *Chunker {
	return &Chunker{Size: 300, Overlap: 50, MinLen: 5}
}

// Split breaks text into chunks of at most c.Size runes.
func (c *Chunker) Split(text string) []string {
	pieces := c.split([]rune(text), 0)
	merged := c.merge(pieces)

	out := make([]string, 0, len(merged))
	for _, m := range merged {
		if m = strings.TrimSpace(m); len([]rune(m)) >= c.MinLen {
			out = append(out, m)
		}
	}
	return out
}

// split recursively divides runes using separator sepIdx and finer.
func (c *Chunker) split(runes []rune, sepIdx int) []string {
	if len(runes) <= c.Size {
		if len(runes) == 0 {
			return nil
		}
		return []string{string(runes)}
	}
	if sepIdx >= len(chunkSeparators) {
		return c.hardSplit(runes)
	}

	sep := chunkSeparators[sepIdx]
	if sep == "" {
		return c.hardSplit(runes)
	}

	parts := splitAfter(string(runes), sep)
	if len(parts) <= 1 {
		// Separator absent, try the next finer one.
		return c.split(runes, sepIdx+1)
	}

	var out []string
	for _, p := range parts {
		out = append(out, c.split([]rune(p), sepIdx+1)...)
	}
	return out
}

// hardSplit slices runes into fixed windows when no separator applies.
func (c *Chunker) hardSplit(runes []rune) []string {
	var out []string
	for i := 0; i < len(runes); i += c.Size {
		end := i + c.Size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// merge greedily packs adjacent pieces into chunks up to Size runes, seeding
// each new chunk with the tail of the previous one for overlap. The overlap
// seed is skipped when it would push the next piece over the limit; a chunk
// holding only seed content is never emitted.
func (c *Chunker) merge(pieces []string) []string {
	var out []string
	var cur []rune
	fresh := false
	for _, p := range pieces {
		pr := []rune(p)
		if len(cur)+len(pr) > c.Size && len(cur) > 0 {
			if fresh {
				out = append(out, string(cur))
			}
			if fresh && c.Overlap > 0 && len(cur) > c.Overlap && len(pr)+c.Overlap <= c.Size {
				cur = append([]rune(nil), cur[len(cur)-c.Overlap:]...)
			} else {
				cur = cur[:0]
			}
			fresh = false
		}
		cur = append(cur, pr...)
		fresh = true
	}
	if fresh && len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}

// splitAfter splits s on sep keeping the separator attached to the preceding
// part, so sentence enders stay with their sentences.
func splitAfter(s, sep string) []string {
	parts := strings.SplitAfter(s, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
