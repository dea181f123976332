package chunk

import (
	"strings"
	"testing"
)

func TestSplitEmptyText(t *testing.T) {
	chunks := Split("", Config{ChunkSize: 100, OverlapPercent: 15})
	if chunks != nil {
		t.Fatalf("expected nil for empty text, got %v", chunks)
	}
}

func TestSplitShorterThanChunkSize(t *testing.T) {
	text := "short text"
	chunks := Split(text, Config{ChunkSize: 1000, OverlapPercent: 15})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Fatalf("expected chunk text %q, got %q", text, chunks[0].Text)
	}
	if chunks[0].OverlapPrevious != 0 || chunks[0].OverlapNext != 0 {
		t.Fatalf("single chunk should have no overlap, got %+v", chunks[0])
	}
}

func TestSplitReconstructsInput(t *testing.T) {
	text := strings.Repeat("abcdefghij", 50) // 500 chars
	cfg := Config{ChunkSize: 100, OverlapPercent: 15}
	chunks := Split(text, cfg)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0].Text)
	for i := 1; i < len(chunks); i++ {
		overlap := chunks[i].OverlapPrevious
		if overlap > len(chunks[i].Text) {
			t.Fatalf("chunk %d overlap %d exceeds its own length %d", i, overlap, len(chunks[i].Text))
		}
		rebuilt.WriteString(chunks[i].Text[overlap:])
	}

	if rebuilt.String() != text {
		t.Fatalf("reconstructed text does not match input\nwant: %q\ngot:  %q", text, rebuilt.String())
	}
}

func TestSplitAdjacentOverlapBytesMatch(t *testing.T) {
	text := strings.Repeat("0123456789", 30)
	cfg := Config{ChunkSize: 47, OverlapPercent: 20}
	chunks := Split(text, cfg)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		overlap := cur.OverlapPrevious
		if overlap == 0 {
			continue
		}
		tail := prev.Text[len(prev.Text)-overlap:]
		head := cur.Text[:overlap]
		if tail != head {
			t.Fatalf("chunk %d/%d overlap mismatch: tail=%q head=%q", i-1, i, tail, head)
		}
	}
}

func TestSplitIndexesAreSequential(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := Split(text, Config{ChunkSize: 60, OverlapPercent: 10})
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has Index %d", i, c.Index)
		}
	}
}

func TestSplitLastChunkHasNoOverlapNext(t *testing.T) {
	text := strings.Repeat("y", 310)
	chunks := Split(text, Config{ChunkSize: 100, OverlapPercent: 15})
	last := chunks[len(chunks)-1]
	if last.OverlapNext != 0 {
		t.Fatalf("last chunk should have OverlapNext 0, got %d", last.OverlapNext)
	}
	if last.End != len(text) {
		t.Fatalf("last chunk should end at input length %d, got %d", len(text), last.End)
	}
}

func TestMapPagesSinglePage(t *testing.T) {
	chunks := Split(strings.Repeat("z", 50), Config{ChunkSize: 200, OverlapPercent: 0})
	offsets := []PageOffset{{Page: 1, CharStart: 0, CharEnd: 50}}
	MapPages(chunks, offsets)

	if chunks[0].PageNumber == nil || *chunks[0].PageNumber != 1 {
		t.Fatalf("expected page 1, got %v", chunks[0].PageNumber)
	}
	if chunks[0].PageRange != nil {
		t.Fatalf("single-page chunk should have nil PageRange, got %v", *chunks[0].PageRange)
	}
}

func TestMapPagesSpansMultiplePages(t *testing.T) {
	text := strings.Repeat("w", 300)
	chunks := Split(text, Config{ChunkSize: 300, OverlapPercent: 0})
	offsets := []PageOffset{
		{Page: 1, CharStart: 0, CharEnd: 100},
		{Page: 2, CharStart: 100, CharEnd: 200},
		{Page: 3, CharStart: 200, CharEnd: 300},
	}
	MapPages(chunks, offsets)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk covering whole text, got %d", len(chunks))
	}
	if chunks[0].PageNumber == nil || *chunks[0].PageNumber != 1 {
		t.Fatalf("expected min page 1, got %v", chunks[0].PageNumber)
	}
	if chunks[0].PageRange == nil || *chunks[0].PageRange != "1-3" {
		t.Fatalf("expected page range 1-3, got %v", chunks[0].PageRange)
	}
}

func TestMapPagesNoIntersectionLeavesUnset(t *testing.T) {
	chunks := Split(strings.Repeat("v", 20), Config{ChunkSize: 200, OverlapPercent: 0})
	offsets := []PageOffset{{Page: 1, CharStart: 1000, CharEnd: 1010}}
	MapPages(chunks, offsets)

	if chunks[0].PageNumber != nil {
		t.Fatalf("expected nil PageNumber when no offset intersects, got %v", *chunks[0].PageNumber)
	}
}

func TestMapPagesEmptyOffsetsNoop(t *testing.T) {
	chunks := Split(strings.Repeat("u", 20), Config{ChunkSize: 200, OverlapPercent: 0})
	MapPages(chunks, nil)
	if chunks[0].PageNumber != nil {
		t.Fatalf("expected nil PageNumber with no offsets, got %v", *chunks[0].PageNumber)
	}
}
