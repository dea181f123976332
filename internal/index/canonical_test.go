package index

import (
	"strings"
	"testing"

	"github.com/ptts-corpus/ptts/internal/hashutil"
	"github.com/ptts-corpus/ptts/internal/store"
)

func TestCanonicalBytes_Document(t *testing.T) {
	b, err := CanonicalBytes(store.ProvDocument, DocumentInput{FileBytes: []byte("pdf bytes")})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "pdf bytes" {
		t.Errorf("got %q", b)
	}
}

func TestCanonicalBytes_Chunk(t *testing.T) {
	b, err := CanonicalBytes(store.ProvChunk, ChunkInput{Text: "hello world"})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "hello world" {
		t.Errorf("got %q", b)
	}
}

func TestCanonicalBytes_KnowledgeGraphBuildIsSorted(t *testing.T) {
	b1, err := CanonicalBytes(store.ProvKnowledgeGraph, KnowledgeGraphBuildInput{EntityIDs: []string{"b", "a", "c"}})
	if err != nil {
		t.Fatal(err)
	}
	b2, err := CanonicalBytes(store.ProvKnowledgeGraph, KnowledgeGraphBuildInput{EntityIDs: []string{"c", "b", "a"}})
	if err != nil {
		t.Fatal(err)
	}
	if string(b1) != string(b2) {
		t.Errorf("expected order-independent hashing: %q != %q", b1, b2)
	}
	if !strings.Contains(string(b1), `"a"`) {
		t.Errorf("expected json array, got %q", b1)
	}
}

func TestCanonicalBytes_KnowledgeGraphNode(t *testing.T) {
	b, err := CanonicalBytes(store.ProvKnowledgeGraph, KnowledgeGraphNodeInput{NodeID: "n1", CanonicalName: "Acme Corp"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "Acme Corp") {
		t.Errorf("got %q", b)
	}
}

func TestCanonicalBytes_TypeMismatch(t *testing.T) {
	_, err := CanonicalBytes(store.ProvDocument, ChunkInput{Text: "wrong shape"})
	if err == nil {
		t.Fatal("expected error for mismatched input type")
	}
}

func TestCanonicalBytes_UnknownType(t *testing.T) {
	_, err := CanonicalBytes(store.ProvenanceType("NOT_A_TYPE"), nil)
	if err == nil {
		t.Fatal("expected error for unregistered type")
	}
}

func TestHash_MatchesHashutil(t *testing.T) {
	got, err := Hash(store.ProvOCRResult, OCRResultInput{ExtractedText: "extracted text"})
	if err != nil {
		t.Fatal(err)
	}
	want := hashutil.ComputeHashString("extracted text")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !hashutil.IsValidHashFormat(got) {
		t.Errorf("hash %q does not match the canonical format", got)
	}
}

func TestHash_RederivationIsStable(t *testing.T) {
	input := EmbeddingInput{OriginalText: "some chunk text"}
	h1, err := Hash(store.ProvEmbedding, input)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := Hash(store.ProvEmbedding, input)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("expected stable rederivation, got %q and %q", h1, h2)
	}
}
