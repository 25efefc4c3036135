package ioutils

import (
	"bytes"
	"context"
	"image"
	_ "image/gif" // GIF decoder registration
	"image/jpeg"
	_ "image/png" // PNG decoder registration

	"golang.org/x/image/draw"
)

// ImageService post-processes fetched catalog images.
//
// ImageService is used to:
//   - Resize images to fit a maximum dimension (catalog feeds often
//     carry needlessly large originals)
//   - Convert images to JPEG for a uniform output tree
//
// Example usage:
//
//	svc := NewImageService()
//	processed, ext, err := svc.Process(ctx, data, 1000, true)
//	// processed is JPEG-encoded and at most 1000px on the long edge;
//	// ext is ".jpg"
type ImageService struct{}

// NewImageService creates a new ImageService.
func NewImageService() *ImageService {
	return &ImageService{}
}

// Process applies the configured transformations to image data.
//
// Parameters:
//   - ctx: Context for cancellation (currently unused)
//   - data: Original image data (JPEG, PNG or GIF)
//   - maxSize: Maximum width/height in pixels; 0 disables resizing
//   - convertJPG: Re-encode as JPEG regardless of input format
//
// Returns the processed bytes and the file extension they should carry
// (".jpg" when the output is JPEG-encoded, "" when the data passed
// through untouched). Data that cannot be decoded as an image is
// returned unchanged; post-processing is best-effort and never fails a
// download that already completed.
func (s *ImageService) Process(ctx context.Context, data []byte, maxSize int, convertJPG bool) ([]byte, string, error) {
	if maxSize <= 0 && !convertJPG {
		return data, "", nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, "", nil
	}

	if maxSize > 0 {
		img = scaleToFit(img, maxSize, maxSize)
	}

	// Resizing implies re-encoding, and JPEG is the only encoder we
	// carry, so both paths converge on a JPEG payload.
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), ".jpg", nil
}

// scaleToFit resizes img to fit within maxWidth x maxHeight,
// preserving aspect ratio. Images already within bounds are returned
// unchanged. The Catmull-Rom algorithm is used for high-quality scaling.
func scaleToFit(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxWidth && height <= maxHeight {
		return img
	}

	ratio := float64(width) / float64(height)
	if float64(maxWidth)/float64(maxHeight) > ratio {
		// Height is the limiting factor
		width = int(float64(maxHeight) * ratio)
		height = maxHeight
	} else {
		// Width is the limiting factor
		height = int(float64(maxWidth) / ratio)
		width = maxWidth
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
