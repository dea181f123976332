// Package chunk implements the deterministic sliding-window chunker that
// splits OCR text into overlapping windows for embedding and search.
package chunk

import "strconv"

// Config tunes the chunker. ChunkSize and OverlapPercent are validated by
// the configurator (internal/config); this package trusts its caller.
type Config struct {
	ChunkSize      int
	OverlapPercent int
}

// PageOffset maps a page number to the half-open character range
// [CharStart, CharEnd) it occupies in the full OCR text.
type PageOffset struct {
	Page      int
	CharStart int
	CharEnd   int
}

// Chunk is one window of the input text.
type Chunk struct {
	Index           int
	Start           int
	End             int // exclusive
	Text            string
	OverlapPrevious int
	OverlapNext     int
	PageNumber      *int
	PageRange       *string
}

// Split runs the sliding-window algorithm over text. An empty text
// returns an empty slice. Overlap is floor(chunk_size * overlap_percent /
// 100); step is chunk_size - overlap. Windows advance by step until one
// reaches the end of the text.
func Split(text string, cfg Config) []Chunk {
	if len(text) == 0 {
		return nil
	}

	overlap := cfg.ChunkSize * cfg.OverlapPercent / 100
	step := cfg.ChunkSize - overlap
	if step <= 0 {
		step = 1
	}

	var chunks []Chunk
	length := len(text)

	for start := 0; start < length; start += step {
		end := start + cfg.ChunkSize
		if end > length {
			end = length
		}

		overlapPrev := 0
		if len(chunks) > 0 {
			overlapPrev = overlap
		}
		overlapNext := 0
		if end < length {
			overlapNext = overlap
		}

		chunks = append(chunks, Chunk{
			Index:           len(chunks),
			Start:           start,
			End:             end,
			Text:            text[start:end],
			OverlapPrevious: overlapPrev,
			OverlapNext:     overlapNext,
		})

		if end >= length {
			break
		}
	}

	return chunks
}

// MapPages annotates each chunk with PageNumber/PageRange by intersecting
// [chunk.Start, chunk.End) against the half-open ranges in offsets. If no
// offset intersects, the chunk is left unannotated. A single intersecting
// page sets PageNumber; more than one sets PageNumber to the minimum and
// PageRange to "min-max".
func MapPages(chunks []Chunk, offsets []PageOffset) {
	if len(offsets) == 0 {
		return
	}

	for i := range chunks {
		c := &chunks[i]
		var pages []int
		for _, po := range offsets {
			if po.CharStart < c.End && c.Start < po.CharEnd {
				pages = append(pages, po.Page)
			}
		}
		if len(pages) == 0 {
			continue
		}

		min, max := pages[0], pages[0]
		for _, p := range pages[1:] {
			if p < min {
				min = p
			}
			if p > max {
				max = p
			}
		}

		if min == max {
			c.PageNumber = &min
		} else {
			c.PageNumber = &min
			r := formatRange(min, max)
			c.PageRange = &r
		}
	}
}

func formatRange(min, max int) string {
	return strconv.Itoa(min) + "-" + strconv.Itoa(max)
}
