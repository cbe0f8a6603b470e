package models

// UploadedDocument is an upload held in memory for the lifetime of one request.
type UploadedDocument struct {
	Filename         string
	DeclaredMimeType string
	SizeBytes        int64
	Bytes            []byte
}

// ExtractedText is the bounded plain-text view of a document.
type ExtractedText struct {
	Raw       string
	Truncated bool
	Length    int
	PageCount int
}

type ExtractOptions struct {
	MaxPages      int
	MaxChars      int
	FirstPageOnly bool
}
