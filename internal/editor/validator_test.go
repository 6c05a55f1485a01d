package editor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"image-editor/internal/database"
	"image-editor/internal/memory"
)

type brokenAssets struct{}

func (brokenAssets) GetAttachment(context.Context, int64) (*database.Attachment, error) {
	return nil, errors.New("database is locked")
}

func TestValidatorSource(t *testing.T) {
	f := newFixture(t, Limits{})
	png := encodePNG(t, 64, 48)
	f.addImage(t, 1, "2024/05/photo.png", png)

	src, err := f.v.Source(context.Background(), 1)
	if err != nil {
		t.Fatalf("Source() error = %v", err)
	}
	if src.Width != 64 || src.Height != 48 {
		t.Errorf("dimensions = %dx%d, want 64x48", src.Width, src.Height)
	}
	if src.ByteSize != int64(len(png)) {
		t.Errorf("ByteSize = %d, want %d", src.ByteSize, len(png))
	}
	if src.Format != "png" || src.MimeType != "image/png" {
		t.Errorf("format = %q, mime = %q", src.Format, src.MimeType)
	}
	if src.BaseName() != "photo" {
		t.Errorf("BaseName() = %q", src.BaseName())
	}
}

func TestValidatorRejections(t *testing.T) {
	small := Limits{MaxFileSize: 1 << 20, MaxWidth: 100, MaxHeight: 100}
	f := newFixture(t, small)

	f.addImage(t, 1, "ok.png", encodePNG(t, 10, 10))
	f.addImage(t, 2, "wide.png", encodePNG(t, 150, 10))
	f.addImage(t, 3, "junk.png", []byte("this is not an image at all"))
	f.addImage(t, 4, "huge.png", make([]byte, 2<<20))
	f.assets.add(5, "missing.png", "image/png")
	f.assets.add(6, "notes.txt", "text/plain")

	tests := []struct {
		name       string
		id         int64
		kind       Kind
		reason     string
		msgContain string
	}{
		{"unknown id", 99, KindNotFound, "", MsgInvalidAttachment},
		{"not an image type", 6, KindNotFound, "", MsgInvalidAttachment},
		{"file missing", 5, KindNotFound, "", MsgFileNotFound},
		{"file too large", 4, KindValidation, ReasonFileTooLarge, MsgFileTooLarge},
		{"unreadable header", 3, KindValidation, ReasonUnreadable, MsgNoDimensions},
		{"too wide", 2, KindValidation, ReasonDimensions, "Image dimensions (150x10) exceed maximum allowed size (100x100)."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.v.Source(context.Background(), tt.id)
			e := wantKind(t, err, tt.kind)
			if e.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", e.Reason, tt.reason)
			}
			if !strings.Contains(e.Message, tt.msgContain) {
				t.Errorf("Message = %q, want %q", e.Message, tt.msgContain)
			}
		})
	}

	if f.lib.Loads() != 0 {
		t.Errorf("library loads = %d, want 0", f.lib.Loads())
	}
}

func TestValidatorMemoryCeiling(t *testing.T) {
	// 100x100 needs 120000 bytes of working memory.
	f := newFixture(t, Limits{Memory: memory.Budget{Ceiling: 100000, Source: "test"}})
	f.addImage(t, 1, "photo.png", encodePNG(t, 100, 100))

	_, err := f.v.Source(context.Background(), 1)
	e := wantKind(t, err, KindValidation)
	if e.Reason != ReasonMemory || e.Message != MsgMemory {
		t.Errorf("error = %q/%q, want memory rejection", e.Reason, e.Message)
	}
	if KindOf(err) == KindProcessing {
		t.Error("memory rejection must not look like a processing failure")
	}
}

func TestValidatorLookupFailure(t *testing.T) {
	f := newFixture(t, Limits{})
	v := NewValidator(brokenAssets{}, f.files, Limits{})

	_, err := v.Source(context.Background(), 1)
	wantKind(t, err, KindNotFound)
}

func TestValidatorEscapingPath(t *testing.T) {
	f := newFixture(t, Limits{})
	f.assets.add(1, "../../etc/passwd.png", "image/png")

	_, err := f.v.Source(context.Background(), 1)
	e := wantKind(t, err, KindNotFound)
	if e.Message != MsgFileNotFound {
		t.Errorf("Message = %q", e.Message)
	}
}

func TestLimitsDefaults(t *testing.T) {
	l := Limits{}.withDefaults()
	if l.MaxFileSize != DefaultMaxFileSize || l.MaxWidth != DefaultMaxWidth || l.MaxHeight != DefaultMaxHeight {
		t.Errorf("withDefaults() = %+v", l)
	}
	if l.Memory.Ceiling <= 0 {
		t.Errorf("memory ceiling = %d", l.Memory.Ceiling)
	}
}
