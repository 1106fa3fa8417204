package domain

import "errors"

var (
	ErrNotFound            = errors.New("resource not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrTooManyPages        = errors.New("pdf exceeds maximum allowed page count")
	ErrInvalidDocument     = errors.New("document could not be read")
	ErrUploadFailed        = errors.New("file upload to storage failed")
	ErrExtractionFailed    = errors.New("document extraction failed")
	ErrNotExtracted        = errors.New("invoice has no successful extraction")
	ErrInvalidFilter       = errors.New("invalid filter")
	ErrInvoiceBusy         = errors.New("invoice is being processed")
	ErrAPIKeyRevoked       = errors.New("api key revoked")
)
