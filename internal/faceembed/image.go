package faceembed

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// decodeImage decodes JPEG, PNG, BMP or WebP data.
func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	return img, nil
}

// checkImage verifies the header without decoding pixel data.
func checkImage(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	return nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: constants.VariantJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// rotate turns img by angle degrees about its center, counter-clockwise for
// positive angles. The output keeps the original size; uncovered corners are black.
func rotate(img image.Image, angle float64) *image.RGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	cx := float64(bounds.Min.X) + float64(w/2)
	cy := float64(bounds.Min.Y) + float64(h/2)

	rad := angle * math.Pi / 180
	a, b := math.Cos(rad), math.Sin(rad)

	// source to destination transform, destination origin at (0,0)
	s2d := f64.Aff3{
		a, b, (1-a)*cx - b*cy - float64(bounds.Min.X),
		-b, a, b*cx + (1-a)*cy - float64(bounds.Min.Y),
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)
	draw.BiLinear.Transform(dst, s2d, img, bounds, draw.Over, nil)
	return dst
}

// scaleCentered zooms img by factor about its center and crops or pads the
// result back to the original size. Padding is black.
func scaleCentered(img image.Image, factor float64) *image.RGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	nw, nh := int(float64(w)*factor), int(float64(h)*factor)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)

	offX, offY := (w-nw)/2, (h-nh)/2
	dr := image.Rect(offX, offY, offX+nw, offY+nh)
	draw.CatmullRom.Scale(dst, dr, img, bounds, draw.Src, nil)
	return dst
}

// variantImages builds the rotated and scaled perturbations of img in a fixed
// order: rotations first, then scales.
func variantImages(img image.Image) []image.Image {
	out := make([]image.Image, 0, len(constants.VariantAngles)+len(constants.VariantScales))
	for _, angle := range constants.VariantAngles {
		out = append(out, rotate(img, angle))
	}
	for _, scale := range constants.VariantScales {
		out = append(out, scaleCentered(img, scale))
	}
	return out
}

// Variants returns the geometric perturbations of an encoded image as JPEG
// data: rotations by -10 and +10 degrees, then 0.95 and 1.05 zooms.
func Variants(data []byte) ([][]byte, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}

	images := variantImages(img)
	out := make([][]byte, 0, len(images))
	for _, v := range images {
		encoded, err := encodeJPEG(v)
		if err != nil {
			return nil, err
		}
		out = append(out, encoded)
	}
	return out, nil
}
