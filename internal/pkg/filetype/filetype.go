// Package filetype gates the chunk-upload pipeline's first chunk
// against an accepted-extension policy, rejecting binaries and unknown
// extensions before any FileRecord or object is created. The accepted
// set is wider than what pkg/textextract can read: ingestion extracts
// text only from PDF and plain-text formats, and rejects the other
// accepted extensions (Office, OpenDocument, HTML, EPUB, ...). Grounded on manshu's
// FileTypeValidationService (SUPPORTED_DOCUMENT_EXTENSIONS /
// UNSUPPORTED_EXTENSIONS / validateFileType).
package filetype

import (
	"path/filepath"
	"sort"
	"strings"
)

var supportedExtensions = map[string]bool{
	"pdf":  true,
	"doc":  true,
	"docx": true,
	"xls":  true,
	"xlsx": true,
	"ppt":  true,
	"pptx": true,
	"txt":  true,
	"rtf":  true,
	"md":   true,

	"odt": true,
	"ods": true,
	"odp": true,

	"html": true,
	"htm":  true,
	"xml":  true,
	"json": true,
	"csv":  true,

	"epub": true,

	"pages":   true,
	"numbers": true,
	"keynote": true,
}

// deniedExtensions are formats the service recognizes and explicitly
// refuses, so the caller gets a specific reason instead of the
// generic "unrecognized" message.
var deniedExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "bmp": true,
	"svg": true, "webp": true, "tiff": true, "ico": true, "psd": true,

	"mp3": true, "wav": true, "flac": true, "aac": true, "ogg": true,
	"wma": true, "m4a": true,

	"mp4": true, "avi": true, "mov": true, "wmv": true, "flv": true,
	"mkv": true, "webm": true, "m4v": true, "3gp": true,

	"zip": true, "rar": true, "7z": true, "tar": true, "gz": true,
	"bz2": true, "xz": true,

	"exe": true, "msi": true, "dmg": true, "pkg": true, "deb": true,
	"rpm": true,

	"ttf": true, "otf": true, "woff": true, "woff2": true, "eot": true,

	"dwg": true, "dxf": true, "step": true, "iges": true,

	"db": true, "sqlite": true, "mdb": true, "accdb": true,

	"bin": true, "dat": true, "iso": true, "img": true,
}

// Result mirrors manshu's FileTypeValidationResult.
type Result struct {
	Valid     bool
	Message   string
	Extension string
}

// Validate reports whether fileName's extension is in the accepted
// set. Called only for a chunk-upload request's chunk
// index 0, matching manshu's UploadController (validated once per
// upload, not once per chunk).
func Validate(fileName string) Result {
	ext := extension(fileName)
	if ext == "" {
		return Result{Valid: false, Message: "file name has no extension"}
	}
	if supportedExtensions[ext] {
		return Result{Valid: true, Extension: ext}
	}
	if deniedExtensions[ext] {
		return Result{Valid: false, Message: "." + ext + " files are not accepted for indexing", Extension: ext}
	}
	return Result{Valid: false, Message: "unrecognized file extension ." + ext, Extension: ext}
}

func extension(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "" || ext == "." {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// SupportedExtensions lists every extension the gate accepts, sorted
// for a stable response from the supported-types endpoint.
func SupportedExtensions() []string {
	out := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
