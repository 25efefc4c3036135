package ioutils

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestFindByStem(t *testing.T) {
	dir := t.TempDir()

	writeFile := func(name string, data []byte) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatal(err)
		}
	}

	writeFile("111111.jpg", []byte("payload"))
	writeFile("222222.png", []byte{})
	if err := os.Mkdir(filepath.Join(dir, "333333"), 0755); err != nil {
		t.Fatal(err)
	}

	t.Run("matching stem found regardless of extension", func(t *testing.T) {
		path, err := FindByStem(dir, "111111")
		if err != nil {
			t.Fatal(err)
		}
		if path != filepath.Join(dir, "111111.jpg") {
			t.Errorf("FindByStem = %q, want 111111.jpg", path)
		}
	})

	t.Run("zero-byte file does not satisfy", func(t *testing.T) {
		path, err := FindByStem(dir, "222222")
		if err != nil {
			t.Fatal(err)
		}
		if path != "" {
			t.Errorf("FindByStem = %q, want empty for zero-byte file", path)
		}
	})

	t.Run("directory does not satisfy", func(t *testing.T) {
		path, err := FindByStem(dir, "333333")
		if err != nil {
			t.Fatal(err)
		}
		if path != "" {
			t.Errorf("FindByStem = %q, want empty for directory", path)
		}
	})

	t.Run("missing stem", func(t *testing.T) {
		path, err := FindByStem(dir, "999999")
		if err != nil {
			t.Fatal(err)
		}
		if path != "" {
			t.Errorf("FindByStem = %q, want empty", path)
		}
	})

	t.Run("missing directory is not an error", func(t *testing.T) {
		path, err := FindByStem(filepath.Join(dir, "nope"), "111111")
		if err != nil {
			t.Fatal(err)
		}
		if path != "" {
			t.Errorf("FindByStem = %q, want empty", path)
		}
	})
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestImageService_Process(t *testing.T) {
	svc := NewImageService()
	ctx := context.Background()

	t.Run("disabled passes data through", func(t *testing.T) {
		data := []byte("not an image")
		out, ext, err := svc.Process(ctx, data, 0, false)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(out, data) || ext != "" {
			t.Error("disabled processing must not touch the data")
		}
	})

	t.Run("non-image data passes through", func(t *testing.T) {
		data := []byte("not an image")
		out, ext, err := svc.Process(ctx, data, 100, true)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(out, data) || ext != "" {
			t.Error("undecodable data must pass through unchanged")
		}
	})

	t.Run("convert to jpeg", func(t *testing.T) {
		out, ext, err := svc.Process(ctx, testPNG(t, 40, 20), 0, true)
		if err != nil {
			t.Fatal(err)
		}
		if ext != ".jpg" {
			t.Errorf("ext = %q, want .jpg", ext)
		}
		if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
			t.Errorf("output is not valid JPEG: %v", err)
		}
	})

	t.Run("resize preserves aspect ratio", func(t *testing.T) {
		out, ext, err := svc.Process(ctx, testPNG(t, 400, 200), 100, false)
		if err != nil {
			t.Fatal(err)
		}
		if ext != ".jpg" {
			t.Errorf("ext = %q, want .jpg after re-encode", ext)
		}
		img, err := jpeg.Decode(bytes.NewReader(out))
		if err != nil {
			t.Fatal(err)
		}
		b := img.Bounds()
		if b.Dx() != 100 || b.Dy() != 50 {
			t.Errorf("resized to %dx%d, want 100x50", b.Dx(), b.Dy())
		}
	})

	t.Run("small image is not upscaled", func(t *testing.T) {
		out, _, err := svc.Process(ctx, testPNG(t, 30, 30), 100, false)
		if err != nil {
			t.Fatal(err)
		}
		img, err := jpeg.Decode(bytes.NewReader(out))
		if err != nil {
			t.Fatal(err)
		}
		b := img.Bounds()
		if b.Dx() != 30 || b.Dy() != 30 {
			t.Errorf("got %dx%d, want original 30x30", b.Dx(), b.Dy())
		}
	})
}
