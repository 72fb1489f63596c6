package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finstack/types"
)

func TestExtractPlainText(t *testing.T) {
	e := New("")

	res, err := e.Extract(context.Background(), []byte("hello knowledge base"), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello knowledge base", res.Text)
	assert.Equal(t, "text", res.FileType)
	assert.Equal(t, 20, res.CharCount)
}

func TestExtractMarkdown(t *testing.T) {
	e := New("")

	res, err := e.Extract(context.Background(), []byte("# Title\n\nbody"), "README.md")
	require.NoError(t, err)
	assert.Equal(t, "text", res.FileType)
}

func TestExtractLatin1Fallback(t *testing.T) {
	e := New("")

	// 0xE9 is 'é' in Latin-1 and invalid standalone UTF-8.
	res, err := e.Extract(context.Background(), []byte{'c', 'a', 'f', 0xE9}, "menu.txt")
	require.NoError(t, err)
	assert.Equal(t, "café", res.Text)
}

func TestExtractUnsupportedType(t *testing.T) {
	e := New("")

	_, err := e.Extract(context.Background(), []byte("binary"), "image.png")
	require.Error(t, err)

	var exErr types.ExtractionError
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, "image.png", exErr.Filename)
}

func TestExtractRejectsEmptyText(t *testing.T) {
	e := New("")

	_, err := e.Extract(context.Background(), []byte("   \n "), "blank.txt")
	assert.Error(t, err)
}

func TestExtractOfficeViaConverter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("files")
		require.NoError(t, err)
		assert.Equal(t, "report.docx", header.Filename)

		var resp converterResponse
		resp.Document.MdContent = "# Quarterly Report\n\nRevenue grew."
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := New(srv.URL)
	res, err := e.Extract(context.Background(), []byte("fake-docx-bytes"), "report.docx")
	require.NoError(t, err)
	assert.Equal(t, "docx", res.FileType)
	assert.Contains(t, res.Text, "Quarterly Report")
}

func TestExtractPDFCropBranch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("converter must not be reached when cropping fails")
	}))
	defer srv.Close()

	e := New(srv.URL)
	e.CropTop = 46
	e.CropBottom = 57

	// Not a parsable PDF, so the crop step itself has to reject it before
	// any conversion happens.
	_, err := e.Extract(context.Background(), []byte("not a pdf"), "manual.pdf")
	require.Error(t, err)

	var exErr types.ExtractionError
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, "manual.pdf", exErr.Filename)
}

func TestExtractPDFWithoutCropSkipsCropStep(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var resp converterResponse
		resp.Document.MdContent = "converted text"
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := New(srv.URL)
	res, err := e.Extract(context.Background(), []byte("raw pdf bytes"), "plain.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf", res.FileType)
	assert.Equal(t, "converted text", res.Text)
}

func TestExtractConverterFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "conversion failed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := New(srv.URL)
	_, err := e.Extract(context.Background(), []byte("fake"), "slides.pptx")
	require.Error(t, err)

	var exErr types.ExtractionError
	assert.True(t, errors.As(err, &exErr))
}
