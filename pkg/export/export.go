// Package export encodes finished frames. PNG and TIFF are 8-bit and expect
// display-encoded colors; EXR keeps the linear float values.
package export

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrjoshuak/go-openexr/exr"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// Format is an output file format
type Format int

const (
	FormatPNG Format = iota
	FormatTIFF
	FormatEXR
)

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatTIFF:
		return "tiff"
	case FormatEXR:
		return "exr"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Linear reports whether the format stores linear values, in which case
// the display gamma curve must not be applied before encoding
func (f Format) Linear() bool {
	return f == FormatEXR
}

// ContentType returns the MIME type served for the format
func (f Format) ContentType() string {
	switch f {
	case FormatTIFF:
		return "image/tiff"
	case FormatEXR:
		return "image/x-exr"
	default:
		return "image/png"
	}
}

// ParseFormat accepts a format name such as "png", "tif" or "exr"
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "png":
		return FormatPNG, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	case "exr":
		return FormatEXR, nil
	default:
		return 0, fmt.Errorf("unsupported output format %q (use png, tiff or exr)", name)
	}
}

// FormatForPath picks the format from a file extension
func FormatForPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return 0, fmt.Errorf("output path %q has no extension", path)
	}
	return ParseFormat(ext)
}

// Encode writes img in the given format. 8-bit formats quantize the
// finished colors; EXR needs a seekable writer and stores half floats.
func Encode(w io.Writer, img *exr.RGBAImage, format Format) error {
	switch format {
	case FormatPNG:
		return png.Encode(w, ToRGBA(img))
	case FormatTIFF:
		return tiff.Encode(w, ToRGBA(img), &tiff.Options{Compression: tiff.Deflate})
	case FormatEXR:
		ws, ok := w.(io.WriteSeeker)
		if !ok {
			return fmt.Errorf("exr output needs a seekable writer")
		}
		return exr.Encode(ws, img)
	default:
		return fmt.Errorf("unsupported output format %v", format)
	}
}

// EncodeBytes encodes img into memory
func EncodeBytes(img *exr.RGBAImage, format Format) ([]byte, error) {
	var buf SeekBuffer
	if err := Encode(&buf, img, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile encodes img to path, choosing the format from the extension
func WriteFile(path string, img *exr.RGBAImage) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	if format == FormatEXR {
		if err := exr.EncodeFile(path, img); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		return nil
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Encode(file, img, format); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return file.Close()
}

// ToRGBA quantizes a finished float image to 8 bits with rounding
func ToRGBA(img *exr.RGBAImage) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.RGBA(x, y)
			out.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{
				R: quantize8(r),
				G: quantize8(g),
				B: quantize8(bl),
				A: quantize8(a),
			})
		}
	}
	return out
}

func quantize8(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func quantize16(v float32) uint16 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 0xffff
	}
	return uint16(v*0xffff + 0.5)
}

// Downsample resizes a supersampled frame to width x height. The filter runs
// at 16 bits per channel so EXR output keeps more than 8-bit precision.
func Downsample(src *exr.RGBAImage, width, height int) *exr.RGBAImage {
	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return src
	}

	hi := image.NewRGBA64(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := src.RGBA(x, y)
			hi.SetRGBA64(x-b.Min.X, y-b.Min.Y, color.RGBA64{
				R: quantize16(r), G: quantize16(g), B: quantize16(bl), A: quantize16(a),
			})
		}
	}

	small := image.NewRGBA64(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(small, small.Bounds(), hi, hi.Bounds(), draw.Src, nil)

	out := exr.NewRGBAImage(small.Bounds())
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := small.RGBA64At(x, y)
			out.SetRGBA(x, y,
				float32(c.R)/0xffff, float32(c.G)/0xffff, float32(c.B)/0xffff, float32(c.A)/0xffff)
		}
	}
	return out
}

// EncodeGamma applies the 1/gamma display curve to the color channels in place.
// Negative values are clamped to zero first.
func EncodeGamma(img *exr.RGBAImage, gamma float64) {
	inv := 1.0 / gamma
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.RGBA(x, y)
			img.SetRGBA(x, y, encode(r, inv), encode(g, inv), encode(bl, inv), a)
		}
	}
}

func encode(v float32, inv float64) float32 {
	if v <= 0 {
		return 0
	}
	return float32(math.Pow(float64(v), inv))
}

// SeekBuffer is an in-memory io.WriteSeeker for encoders that patch offsets
type SeekBuffer struct {
	buf []byte
	pos int
}

func (b *SeekBuffer) Write(p []byte) (int, error) {
	end := b.pos + len(p)
	if end > len(b.buf) {
		b.buf = append(b.buf, make([]byte, end-len(b.buf))...)
	}
	copy(b.buf[b.pos:], p)
	b.pos = end
	return len(p), nil
}

func (b *SeekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative position %d", abs)
	}
	b.pos = int(abs)
	return abs, nil
}

// Bytes returns everything written so far
func (b *SeekBuffer) Bytes() []byte {
	return b.buf
}
