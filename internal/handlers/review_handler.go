package handlers

import (
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"

	"github.com/a-abukar/cv-review-generator/internal/models"
	"github.com/a-abukar/cv-review-generator/internal/services"
)

type ReviewHandler struct {
	reviews     services.ReviewService
	maxFileSize int64
}

func NewReviewHandler(reviews services.ReviewService, maxFileSize int64) *ReviewHandler {
	return &ReviewHandler{
		reviews:     reviews,
		maxFileSize: maxFileSize,
	}
}

// HandleReview handles POST /api/review
func (h *ReviewHandler) HandleReview(c *fiber.Ctx) error {
	doc, err := h.readUpload(c)
	if err != nil {
		return writeError(c, err, "An error occurred while processing the review")
	}

	sections, err := h.reviews.Review(c.UserContext(), doc)
	if err != nil {
		return writeError(c, err, "An error occurred while processing the review")
	}

	return c.JSON(sections)
}

// HandleInterviewPrep handles POST /api/premium/interview-prep
func (h *ReviewHandler) HandleInterviewPrep(c *fiber.Ctx) error {
	text, err := h.premium(c, models.FeatureInterviewPrep)
	if err != nil {
		return writeError(c, err, "Failed to generate interview preparation")
	}

	return c.JSON(models.InterviewPrepResponse{InterviewPrep: text})
}

// HandleIndustryOptimize handles POST /api/premium/industry-optimize
func (h *ReviewHandler) HandleIndustryOptimize(c *fiber.Ctx) error {
	text, err := h.premium(c, models.FeatureIndustryOptimize)
	if err != nil {
		return writeError(c, err, "Failed to generate industry optimization")
	}

	return c.JSON(models.IndustryOptimizationResponse{IndustryOptimization: text})
}

func (h *ReviewHandler) premium(c *fiber.Ctx, feature models.FeatureKind) (string, error) {
	doc, err := h.readUpload(c)
	if err != nil {
		return "", err
	}
	return h.reviews.Premium(c.UserContext(), feature, doc)
}

// readUpload validates the multipart "file" field before its bytes are copied into the document.
func (h *ReviewHandler) readUpload(c *fiber.Ctx) (models.UploadedDocument, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return models.UploadedDocument{}, services.ValidationError("No file uploaded")
	}

	doc := models.UploadedDocument{
		Filename:         fileHeader.Filename,
		DeclaredMimeType: fileHeader.Header.Get(fiber.HeaderContentType),
		SizeBytes:        fileHeader.Size,
	}
	if err := h.reviews.ValidateUpload(doc); err != nil {
		return models.UploadedDocument{}, err
	}

	b, err := readFileHeader(fileHeader, h.maxFileSize)
	if err != nil {
		return models.UploadedDocument{}, err
	}
	doc.Bytes = b
	return doc, nil
}

func readFileHeader(fileHeader *multipart.FileHeader, limit int64) ([]byte, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return nil, services.ExtractionError("Failed to read uploaded file", err)
	}
	defer src.Close()

	b, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, services.ExtractionError("Failed to read uploaded file", err)
	}
	if int64(len(b)) > limit {
		return nil, services.FileTooLargeError(limit)
	}
	return b, nil
}
