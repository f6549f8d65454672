package gscodec

import (
	"strings"
	"testing"
)

func TestBuildArgsImageLevers(t *testing.T) {
	args := buildArgs(rewriteOptions{imageDPI: 150, imageQuality: 65})
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-sDEVICE=pdfwrite",
		"-dColorImageResolution=150",
		"-dGrayImageResolution=150",
		"-dJPEGQ=65",
		"-dDownsampleColorImages=true",
		"-dSubsetFonts=false",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}

	if strings.Contains(joined, "-dFILTERTEXT") {
		t.Errorf("text filtering enabled without request: %s", joined)
	}
}

func TestBuildArgsNoImageWork(t *testing.T) {
	args := buildArgs(rewriteOptions{subsetFonts: true, deduplicate: true, removeText: true})
	joined := strings.Join(args, " ")

	if strings.Contains(joined, "Resolution") || strings.Contains(joined, "JPEGQ") {
		t.Errorf("image flags present without targets: %s", joined)
	}
	for _, want := range []string{"-dSubsetFonts=true", "-dDetectDuplicateImages=true", "-dFILTERTEXT"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
}

func TestScanObjectsFindsImages(t *testing.T) {
	pdf := "%PDF-1.7\n" +
		"1 0 obj\n<< /Type /XObject /Subtype /Image /Width 800 /Height 600 /Filter /DCTDecode /Length 4 >>\n" +
		"stream\nabcd\nendstream\nendobj\n" +
		"2 0 obj\n<< /Type /XObject /Subtype /Image /Width 100 /Height 100 /Filter /FlateDecode /Length 4 >>\n" +
		"stream\nwxyz\nendstream\nendobj\n" +
		"3 0 obj\n<< /Type /Metadata /Subtype /XML /Length 10 >>\nstream\n0123456789\nendstream\nendobj\n" +
		"%%EOF"

	result := scanObjects([]byte(pdf))

	if len(result.images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(result.images))
	}
	first := result.images[0]
	if first.width != 800 || first.height != 600 {
		t.Errorf("expected 800x600, got %dx%d", first.width, first.height)
	}
	if first.format != "jpeg" {
		t.Errorf("expected jpeg, got %s", first.format)
	}
	if first.sizeBytes != 4 {
		t.Errorf("expected stream size 4, got %d", first.sizeBytes)
	}
	if result.images[1].format != "png" {
		t.Errorf("expected png, got %s", result.images[1].format)
	}
	if result.metadataBytes != 10 {
		t.Errorf("expected 10 metadata bytes, got %d", result.metadataBytes)
	}
}

func TestScanObjectsCountsDuplicates(t *testing.T) {
	pdf := "%PDF-1.7\n" +
		"1 0 obj\n<< /Subtype /Image /Width 10 /Height 10 >>\nstream\nsame\nendstream\nendobj\n" +
		"2 0 obj\n<< /Subtype /Image /Width 10 /Height 10 >>\nstream\nsame\nendstream\nendobj\n" +
		"%%EOF"

	result := scanObjects([]byte(pdf))
	if result.duplicateImages != 1 {
		t.Errorf("expected 1 duplicate, got %d", result.duplicateImages)
	}
}

func TestProjectedSizeNeverGrows(t *testing.T) {
	if got := projectedSize(1000, 300, 100); got > 1000 {
		t.Errorf("projected size grew: %d", got)
	}
	if got := projectedSize(1000, 72, 25); got >= projectedSize(1000, 150, 65) {
		t.Errorf("more aggressive settings did not shrink projection: %d", got)
	}
}
