// Package projection turns a flat floor-plan raster into a skewed isometric
// base image. It never calls an external service and is deterministic: the
// same input bytes always produce the same output bytes.
package projection

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"

	"floorplan-render-backend/internal/common"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/webp"
)

const (
	SkewX   = -0.58
	ScaleY  = 0.68
	Padding = 40

	// DepthLayers is the number of low-opacity layers drawn under the plan
	// to suggest slab thickness. Each layer is shifted one pixel down, so the
	// extrusion stays inside the padding.
	DepthLayers = 28

	minLayerOpacity = 0.04
	maxLayerOpacity = 0.14
)

// Decode decodes a PNG, JPEG, GIF or WebP image.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, &common.DecodeError{Err: image.ErrFormat}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &common.DecodeError{Err: err}
	}
	return img, nil
}

// Dimensions returns the width and height of an encoded image without
// decoding its pixels.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, &common.DecodeError{Err: err}
	}
	return cfg.Width, cfg.Height, nil
}

// OutputSize returns the canvas size Project produces for a w×h source.
func OutputSize(w, h int) (int, int) {
	width := math.Ceil(float64(w) + math.Abs(SkewX)*float64(h) + 2*Padding)
	height := math.Ceil(float64(h)*ScaleY + 2*Padding)
	return int(width), int(height)
}

// Project applies the fixed shear (x, y) -> (x + SkewX*y, ScaleY*y), offset
// by the padding, on an opaque white canvas.
func Project(src image.Image) *image.RGBA {
	sb := src.Bounds()
	w, h := sb.Dx(), sb.Dy()
	outW, outH := OutputSize(w, h)

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	offsetX := Padding + math.Abs(SkewX)*float64(h)
	// Transform maps source-space coordinates, so the source origin has to be
	// folded into the translation.
	tx := offsetX - float64(sb.Min.X) - SkewX*float64(sb.Min.Y)
	ty := Padding - ScaleY*float64(sb.Min.Y)

	for layer := DepthLayers; layer >= 1; layer-- {
		opacity := minLayerOpacity + (maxLayerOpacity-minLayerOpacity)*float64(DepthLayers-layer)/float64(DepthLayers)
		mask := image.NewUniform(color.Alpha{A: uint8(math.Round(255 * opacity))})
		draw.BiLinear.Transform(dst, shear(tx, ty+float64(layer)), src, sb, draw.Over, &draw.Options{SrcMask: mask})
	}
	draw.BiLinear.Transform(dst, shear(tx, ty), src, sb, draw.Over, nil)

	return dst
}

func shear(tx, ty float64) f64.Aff3 {
	return f64.Aff3{
		1, SkewX, tx,
		0, ScaleY, ty,
	}
}

// ProjectPNG decodes data, projects it and returns the PNG encoding of the
// result.
func ProjectPNG(data []byte) ([]byte, error) {
	src, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return EncodePNG(Project(src))
}

// Fit resamples an encoded image onto a w×h canvas. Nothing is overlaid; it
// only pins the output dimensions.
func Fit(data []byte, w, h int) ([]byte, error) {
	src, err := Decode(data)
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return EncodePNG(dst)
}

// EncodePNG encodes img with the default compression level.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
