package ingest

import (
	"strings"
)

// chunkSeparators are tried in order when recursively splitting text.
var chunkSeparators = []string{"\n\n", "\n", " "}

// ChunkText splits text into overlapping, size-bounded chunks.
//
// Algorithm:
//  1. Recursively split on paragraph breaks, then newlines, then spaces,
//     until every piece fits within chunkSize; pieces with no separator at
//     all are hard-cut at character boundaries.
//  2. Greedily merge pieces into a buffer. When the next piece would
//     overflow, emit the buffer as a chunk and seed the next buffer with the
//     trailing overlap characters of the emitted chunk, advanced to the next
//     word boundary so chunks do not start mid-word.
//
// Blank input yields no chunks.
func ChunkText(text string, chunkSize, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if overlap < 0 {
		overlap = 0
	}

	pieces := recursiveSplit(strings.TrimSpace(text), chunkSeparators, chunkSize)

	var chunks []string
	var buf []string

	for _, piece := range pieces {
		tentative := piece
		if len(buf) > 0 {
			tentative = strings.Join(buf, " ") + " " + piece
		}
		if len(tentative) > chunkSize && len(buf) > 0 {
			chunk := strings.Join(buf, " ")
			chunks = append(chunks, chunk)

			var overlapText string
			if len(chunk) > overlap {
				cut := len(chunk) - overlap
				// Advance to the next word boundary.
				if spaceIdx := strings.Index(chunk[cut:], " "); spaceIdx != -1 {
					overlapText = chunk[cut+spaceIdx+1:]
				} else {
					overlapText = chunk[cut:]
				}
			} else {
				overlapText = chunk
			}

			buf = buf[:0]
			if strings.TrimSpace(overlapText) != "" {
				buf = append(buf, overlapText)
			}
		}
		buf = append(buf, piece)
	}

	if len(buf) > 0 {
		chunks = append(chunks, strings.Join(buf, " "))
	}

	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

// recursiveSplit breaks text into pieces of at most chunkSize characters,
// trying each separator in order and hard-cutting as a last resort.
func recursiveSplit(text string, separators []string, chunkSize int) []string {
	if len(text) <= chunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	for idx, sep := range separators {
		if !strings.Contains(text, sep) {
			continue
		}
		remaining := separators[idx+1:]
		var result []string
		for _, part := range strings.Split(text, sep) {
			stripped := strings.TrimSpace(part)
			if stripped == "" {
				continue
			}
			if len(stripped) <= chunkSize {
				result = append(result, stripped)
			} else {
				result = append(result, recursiveSplit(stripped, remaining, chunkSize)...)
			}
		}
		return result
	}

	// No separator found (e.g. a single very long word): hard cut.
	var result []string
	for i := 0; i < len(text); i += chunkSize {
		end := i + chunkSize
		if end > len(text) {
			end = len(text)
		}
		piece := text[i:end]
		if strings.TrimSpace(piece) != "" {
			result = append(result, piece)
		}
	}
	return result
}
