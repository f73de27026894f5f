// Package chunk splits parsed document text into overlapping windows sized
// for embedding.
package chunk

import "strings"

// Chunk is one contiguous, immutable span of text extracted from a file.
// Updating a chunk means deleting the old one and inserting a new one;
// chunks themselves never mutate in place.
type Chunk struct {
	FilePath   string
	ChunkIndex int
	Text       string
	Length     int
	Digest     string
}

// Chunker splits text into overlapping windows measured in characters,
// snapping to word boundaries. The same input always yields the same
// sequence of chunks, so chunk indices stay stable across reindexes of
// identical content.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker with the given window size and overlap, both in
// characters. overlap must be smaller than size.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 7 // close to the default 800/120 ratio (800/7 = 114) as a fallback
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split breaks text into an ordered, zero-indexed sequence of chunk
// strings. Empty or whitespace-only input yields nil. For input shorter
// than the window a single chunk is returned.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(words) {
		wordCount, charCount := 0, 0
		for i := start; i < len(words); i++ {
			wordLen := len(words[i])
			if wordCount > 0 {
				wordLen++ // separating space
			}
			if charCount+wordLen > c.size && wordCount > 0 {
				break
			}
			charCount += wordLen
			wordCount++
		}
		if wordCount == 0 {
			// a single word longer than the window still forms its own chunk
			wordCount = 1
		}
		chunkWords := words[start : start+wordCount]
		chunks = append(chunks, strings.Join(chunkWords, " "))
		if start+wordCount >= len(words) {
			break
		}

		next := start + wordCount
		if c.overlap > 0 && wordCount > 1 {
			overlapChars, overlapWords := 0, 0
			for i := wordCount - 1; i >= 0; i-- {
				wl := len(chunkWords[i])
				if i < wordCount-1 {
					wl++
				}
				if overlapChars+wl > c.overlap {
					break
				}
				overlapChars += wl
				overlapWords++
			}
			next = start + wordCount - overlapWords
			if next <= start {
				next = start + max(1, wordCount/2)
			}
		}
		start = next
	}
	return chunks
}

// Build turns a text blob into fully-populated Chunks for filePath at the
// given content digest.
func (c *Chunker) Build(filePath, digest, text string) []Chunk {
	parts := c.Split(text)
	if len(parts) == 0 {
		return nil
	}
	chunks := make([]Chunk, len(parts))
	for i, t := range parts {
		chunks[i] = Chunk{
			FilePath:   filePath,
			ChunkIndex: i,
			Text:       t,
			Length:     len(t),
			Digest:     digest,
		}
	}
	return chunks
}
