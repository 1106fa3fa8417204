package port

// DocumentInfo describes a validated PDF.
type DocumentInfo struct {
	PageCount int
	Encrypted bool
}

// DocumentInspector validates PDF documents before they are sent for extraction.
type DocumentInspector interface {
	InspectPDF(data []byte) (*DocumentInfo, error)
}
