package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDocAndOCRForImage(t *testing.T, s *Store, docID, ocrID string) {
	t.Helper()
	ctx := t.Context()
	require.NoError(t, s.InsertDocument(ctx, newTestDocument(docID)))
	require.NoError(t, s.InsertOCRResult(ctx, newTestOCRResult(ocrID, docID)))
}

func newTestImage(id, docID, ocrID string, page, index int) *Image {
	return &Image{
		ID:            id,
		DocumentID:    docID,
		OCRResultID:   ocrID,
		PageNumber:    page,
		BBoxX:         0,
		BBoxY:         0,
		BBoxW:         100,
		BBoxH:         100,
		ImageIndex:    index,
		Format:        "png",
		Width:         100,
		Height:        100,
		ExtractedPath: "/images/" + id + ".png",
		VisionStatus:  VisionPending,
	}
}

func TestInsertImagesAndGetImage(t *testing.T) {
	s := openTestStore(t)
	seedDocAndOCRForImage(t, s, "doc1", "ocr1")

	img := newTestImage("img1", "doc1", "ocr1", 1, 0)
	require.NoError(t, s.InsertImages(t.Context(), []*Image{img}))

	got, err := s.GetImage(t.Context(), "img1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "png", got.Format)
	assert.Equal(t, VisionPending, got.VisionStatus)
}

func TestInsertImagesEmptySliceIsNoOp(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertImages(t.Context(), nil))
}

func TestGetImageMissing(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetImage(t.Context(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListImagesByDocumentOrdersByPageThenIndex(t *testing.T) {
	s := openTestStore(t)
	seedDocAndOCRForImage(t, s, "doc1", "ocr1")

	require.NoError(t, s.InsertImages(t.Context(), []*Image{
		newTestImage("img-p2", "doc1", "ocr1", 2, 0),
		newTestImage("img-p1-i1", "doc1", "ocr1", 1, 1),
		newTestImage("img-p1-i0", "doc1", "ocr1", 1, 0),
	}))

	images, err := s.ListImagesByDocument(t.Context(), "doc1")
	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, "img-p1-i0", images[0].ID)
	assert.Equal(t, "img-p1-i1", images[1].ID)
	assert.Equal(t, "img-p2", images[2].ID)
}

func TestListImagesByVisionStatusRespectsLimit(t *testing.T) {
	s := openTestStore(t)
	seedDocAndOCRForImage(t, s, "doc1", "ocr1")

	require.NoError(t, s.InsertImages(t.Context(), []*Image{
		newTestImage("img1", "doc1", "ocr1", 1, 0),
		newTestImage("img2", "doc1", "ocr1", 1, 1),
	}))

	pending, err := s.ListImagesByVisionStatus(t.Context(), VisionPending, 1)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestUpdateImageVisionResult(t *testing.T) {
	s := openTestStore(t)
	seedDocAndOCRForImage(t, s, "doc1", "ocr1")
	require.NoError(t, s.InsertImages(t.Context(), []*Image{newTestImage("img1", "doc1", "ocr1", 1, 0)}))

	desc := "a diagram of quarterly revenue"
	confidence := 0.92
	tokens := 128
	hash := "hash-img1"
	require.NoError(t, s.UpdateImageVisionResult(t.Context(), "img1", VisionComplete, &desc, nil, &confidence, &tokens, &hash))

	got, err := s.GetImage(t.Context(), "img1")
	require.NoError(t, err)
	assert.Equal(t, VisionComplete, got.VisionStatus)
	require.NotNil(t, got.VisionDescription)
	assert.Equal(t, desc, *got.VisionDescription)
}

func TestUpdateImageVisionResultMissing(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdateImageVisionResult(t.Context(), "nope", VisionFailed, nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestUpdateImageVisionStatus(t *testing.T) {
	s := openTestStore(t)
	seedDocAndOCRForImage(t, s, "doc1", "ocr1")
	require.NoError(t, s.InsertImages(t.Context(), []*Image{newTestImage("img1", "doc1", "ocr1", 1, 0)}))

	require.NoError(t, s.UpdateImageVisionStatus(t.Context(), "img1", VisionProcessing))

	got, err := s.GetImage(t.Context(), "img1")
	require.NoError(t, err)
	assert.Equal(t, VisionProcessing, got.VisionStatus)
}

func TestUpdateImageVisionStatusMissing(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdateImageVisionStatus(t.Context(), "nope", VisionProcessing)
	assert.Error(t, err)
}
