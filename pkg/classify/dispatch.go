package classify

import (
	"mime"
	"net/http"
	"strings"

	"github.com/Sriram-PR/statifier/pkg/models"
)

// DefaultMIME is assumed when a response carries no Content-Type header
const DefaultMIME = "text/plain"

// dispatchTable maps a MIME type to its handling branch. Types absent from the table are rejected.
var dispatchTable = map[string]models.MirrorKind{
	"text/html":       models.KindHTML,
	"text/css":        models.KindCSS,
	"application/pdf": models.KindPDF,
	"text/xml":        models.KindXML,

	"image/gif":                models.KindImage,
	"image/jpeg":               models.KindImage,
	"image/png":                models.KindImage,
	"image/x-ms-bmp":           models.KindImage,
	"image/vnd.microsoft.icon": models.KindImage,
	"image/x-icon":             models.KindImage,

	"application/javascript": models.KindJS,
	"text/javascript":        models.KindJS,

	"application/font-woff":         models.KindGenericBinary,
	"application/vnd.ms-fontobject": models.KindGenericBinary,
	"text/plain":                    models.KindGenericBinary,
	"application/x-gzip":            models.KindGenericBinary,
	"application/zip":               models.KindGenericBinary,
	"application/rtf":               models.KindGenericBinary,
	"video/mp4":                     models.KindGenericBinary,
	"video/webm":                    models.KindGenericBinary,
	"text/csv":                      models.KindGenericBinary,
	"application/x-x509-ca-cert":    models.KindGenericBinary,
	"application/x-pkcs7-crl":       models.KindGenericBinary,
	"application/msword":            models.KindGenericBinary,
	"application/vnd.ms-excel":      models.KindGenericBinary,
	"application/epub+zip":          models.KindGenericBinary,
	"application/x-mobi8-ebook":     models.KindGenericBinary,
	"application/xml":               models.KindGenericBinary,
	"image/svg+xml":                 models.KindGenericBinary,
}

// KindFor returns the handling branch for a MIME type, or KindReject
func KindFor(mimeType string) models.MirrorKind {
	if kind, ok := dispatchTable[mimeType]; ok {
		return kind
	}
	return models.KindReject
}

// MIMEOf extracts the media type from the Content-Type header, without parameters.
// A missing header yields DefaultMIME; a present but empty one yields "".
func MIMEOf(header http.Header) string {
	values := header.Values("Content-Type")
	if len(values) == 0 {
		return DefaultMIME
	}
	mediaType, _, err := mime.ParseMediaType(values[0])
	if err != nil {
		mediaType, _, _ = strings.Cut(values[0], ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
