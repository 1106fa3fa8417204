package domain

// FileType represents the allowed file types for upload.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeJPG  FileType = "jpg"
	FileTypePNG  FileType = "png"
	FileTypeTIFF FileType = "tiff"
	FileTypeBMP  FileType = "bmp"
)

// AllowedFileTypes maps FileType to its MIME content type.
var AllowedFileTypes = map[FileType]string{
	FileTypePDF:  "application/pdf",
	FileTypeJPG:  "image/jpeg",
	FileTypePNG:  "image/png",
	FileTypeTIFF: "image/tiff",
	FileTypeBMP:  "image/bmp",
}

// AllowedContentTypes maps MIME content types back to FileType.
var AllowedContentTypes = map[string]FileType{
	"application/pdf": FileTypePDF,
	"image/jpeg":      FileTypeJPG,
	"image/png":       FileTypePNG,
	"image/tiff":      FileTypeTIFF,
	"image/bmp":       FileTypeBMP,
	"image/x-ms-bmp":  FileTypeBMP,
}

// AllowedExtensions maps file extensions (without dot) to FileType.
var AllowedExtensions = map[string]FileType{
	"pdf":  FileTypePDF,
	"jpg":  FileTypeJPG,
	"jpeg": FileTypeJPG,
	"png":  FileTypePNG,
	"tiff": FileTypeTIFF,
	"tif":  FileTypeTIFF,
	"bmp":  FileTypeBMP,
}

// InvoiceStatus represents the processing lifecycle of an uploaded invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending    InvoiceStatus = "pending"
	InvoiceStatusQueued     InvoiceStatus = "queued"
	InvoiceStatusProcessing InvoiceStatus = "processing"
	InvoiceStatusProcessed  InvoiceStatus = "processed"
	InvoiceStatusFailed     InvoiceStatus = "failed"
)

// Valid reports whether s is a known status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusQueued, InvoiceStatusProcessing,
		InvoiceStatusProcessed, InvoiceStatusFailed:
		return true
	}
	return false
}

// ExtractionMethod records how an extraction document was produced. AI extractions
// carry the provider name.
type ExtractionMethod string

const (
	ExtractionMethodGemini    ExtractionMethod = "gemini"
	ExtractionMethodGeminiSDK ExtractionMethod = "gemini_sdk"
	ExtractionMethodImport    ExtractionMethod = "import"
)

// HighConfidenceScore is the extraction confidence at or above which a result counts as high confidence.
const HighConfidenceScore = 0.8
