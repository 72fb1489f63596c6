package api

import (
	"io"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"finstack/extract"
	"finstack/kb"
	"finstack/types"
)

type FileHandler struct {
	kb        *kb.Service
	extractor *extract.Extractor
}

func NewFileHandler(service *kb.Service, extractor *extract.Extractor) *FileHandler {
	return &FileHandler{
		kb:        service,
		extractor: extractor,
	}
}

// HandleUpload ingests one uploaded document end to end: extract the text,
// chunk, embed, and upsert. The response reports what was created.
func (h *FileHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	// Metadata fields ride alongside the file and are all optional.
	var params types.IngestParams
	_ = c.BodyParser(&params)
	if params.DocType == "" {
		params.DocType = "knowledge"
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	extracted, err := h.extractor.Extract(c.Context(), data, fileHeader.Filename)
	if err != nil {
		return err
	}

	result, err := h.kb.Ingest(c.Context(), extracted.Text, types.DocumentMeta{
		Filename:    fileHeader.Filename,
		DocType:     params.DocType,
		AccessLevel: params.AccessLevel,
		UploadedBy:  params.UploadedBy,
		Source:      "upload",
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// HandleDelete removes every vector belonging to one document.
func (h *FileHandler) HandleDelete(c *fiber.Ctx) error {
	filename, err := url.PathUnescape(c.Params("filename"))
	if err != nil || strings.TrimSpace(filename) == "" {
		return ErrBadRequest()
	}

	if err := h.kb.DeleteDocument(c.Context(), filename); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": filename})
}

func (h *FileHandler) HandleStats(c *fiber.Ctx) error {
	stats, err := h.kb.Stats(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
