package media

import "strings"

type formatInfo struct {
	mime string
	ext  string
}

// Formats known to the decoders registered in probe.go. Keys are the names
// returned by image.DecodeConfig.
var formats = map[string]formatInfo{
	"jpeg": {mime: "image/jpeg", ext: "jpg"},
	"png":  {mime: "image/png", ext: "png"},
	"gif":  {mime: "image/gif", ext: "gif"},
	"webp": {mime: "image/webp", ext: "webp"},
	"bmp":  {mime: "image/bmp", ext: "bmp"},
	"tiff": {mime: "image/tiff", ext: "tif"},
}

// NormalizeFormat lowercases a format name and folds aliases such as "jpg"
// and "tif".
func NormalizeFormat(format string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	switch f {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	}
	return f
}

// MimeForFormat returns the MIME type for a format name, defaulting to
// image/jpeg for unknown formats.
func MimeForFormat(format string) string {
	if info, ok := formats[NormalizeFormat(format)]; ok {
		return info.mime
	}
	return "image/jpeg"
}

// ExtensionForMime returns the file extension (without dot) for an image MIME
// type. ok is false for types that cannot be stored.
func ExtensionForMime(mime string) (ext string, ok bool) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	for _, info := range formats {
		if info.mime == mime {
			return info.ext, true
		}
	}
	if mime == "image/jpg" {
		return "jpg", true
	}
	return "", false
}

// MimeForExtension maps a file extension (with or without dot) to a MIME type.
func MimeForExtension(ext string) (string, bool) {
	f := NormalizeFormat(strings.TrimPrefix(ext, "."))
	if f == "jpe" {
		f = "jpeg"
	}
	info, ok := formats[f]
	return info.mime, ok
}

// IsImageMime reports whether mime is an image type.
func IsImageMime(mime string) bool {
	return strings.HasPrefix(strings.ToLower(mime), "image/")
}
