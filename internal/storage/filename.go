package storage

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SanitizeFileName reduces name to a safe single path segment made of ASCII
// letters, digits, dot, dash and underscore. Accented letters lose their
// marks, whitespace becomes a dash and runs of dashes collapse. A name with
// nothing left before the extension becomes "file".
func SanitizeFileName(name string) string {
	name = foldAccents(path.Base(strings.ReplaceAll(name, "\\", "/")))
	ext := path.Ext(name)

	base := cleanSegment(strings.TrimSuffix(name, ext))
	ext = cleanSegment(strings.TrimPrefix(ext, "."))

	if base == "" {
		base = "file"
	}
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// foldAccents strips combining marks, so "é" becomes "e".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func cleanSegment(s string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '_':
			b.WriteRune(r)
			lastDash = false
		case r == '-' || unicode.IsSpace(r):
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	out := strings.Trim(b.String(), ".-_")
	for strings.Contains(out, "..") {
		out = strings.ReplaceAll(out, "..", ".")
	}
	return out
}

// BaseName returns name without directory and extension.
func BaseName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}
