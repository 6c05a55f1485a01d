package media

import "testing"

func TestMimeForFormat(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"jpeg", "image/jpeg"},
		{"JPEG", "image/jpeg"},
		{"jpg", "image/jpeg"},
		{"png", "image/png"},
		{"gif", "image/gif"},
		{"webp", "image/webp"},
		{"tif", "image/tiff"},
		{"heic", "image/jpeg"},
	}

	for _, tt := range tests {
		if got := MimeForFormat(tt.format); got != tt.want {
			t.Errorf("MimeForFormat(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestExtensionForMime(t *testing.T) {
	tests := []struct {
		mime   string
		want   string
		wantOK bool
	}{
		{"image/jpeg", "jpg", true},
		{"image/jpg", "jpg", true},
		{"image/png", "png", true},
		{"IMAGE/GIF", "gif", true},
		{"image/webp", "webp", true},
		{"image/tiff", "tif", true},
		{"image/svg+xml", "", false},
		{"text/plain", "", false},
	}

	for _, tt := range tests {
		got, ok := ExtensionForMime(tt.mime)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ExtensionForMime(%q) = (%q, %v), want (%q, %v)", tt.mime, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestMimeForExtension(t *testing.T) {
	tests := []struct {
		ext    string
		want   string
		wantOK bool
	}{
		{".jpg", "image/jpeg", true},
		{"JPEG", "image/jpeg", true},
		{".jpe", "image/jpeg", true},
		{".png", "image/png", true},
		{".tif", "image/tiff", true},
		{".txt", "", false},
	}

	for _, tt := range tests {
		got, ok := MimeForExtension(tt.ext)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("MimeForExtension(%q) = (%q, %v), want (%q, %v)", tt.ext, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestIsImageMime(t *testing.T) {
	if !IsImageMime("image/png") {
		t.Error("image/png should be an image type")
	}
	if IsImageMime("application/pdf") {
		t.Error("application/pdf should not be an image type")
	}
}
