// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// BytesPerPixel is the size of one RGBA8 texel.
const BytesPerPixel = 4

// ErrTextureSize is returned when pixel data does not match the stated dimensions.
var ErrTextureSize = errors.New("common: pixel data does not match texture dimensions")

// TextureStagingData holds RGBA pixel data for a texture pending GPU upload.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// ByteLength returns the number of bytes an RGBA8 texture of these dimensions occupies.
func (t TextureStagingData) ByteLength() int {
	return int(t.Width) * int(t.Height) * BytesPerPixel
}

// Validate checks that the dimensions are non-zero and the pixel data matches them.
//
// Returns:
//   - error: ErrTextureSize wrapped with the offending sizes, or nil
func (t TextureStagingData) Validate() error {
	if t.Width == 0 || t.Height == 0 || len(t.Pixels) != t.ByteLength() {
		return fmt.Errorf("%dx%d texture with %d bytes: %w", t.Width, t.Height, len(t.Pixels), ErrTextureSize)
	}
	return nil
}

// SamplerStagingData holds the configuration for a sampler pending GPU creation.
// Zero fields fall back to linear filtering and repeat addressing.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// Compare specifies the comparison function for comparison samplers.
	Compare wgpu.CompareFunction
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}

// ImageSource is an encoded image, either held in memory or stored on disk.
type ImageSource struct {
	// Name is an identifier for this image (e.g., "diffuse", "checker").
	Name string

	// Path is the file path for images on disk (empty for in-memory data).
	Path string

	// Data contains raw encoded image bytes.
	Data []byte
}

// Decode decodes the image to RGBA staging data.
// Uses either the in-memory Data bytes or loads from Path on disk.
// Supports PNG, JPEG, BMP and WebP.
//
// Returns:
//   - TextureStagingData: RGBA pixel data (4 bytes per pixel, row-major order) and dimensions
//   - error: error if reading or decoding fails
func (s *ImageSource) Decode() (TextureStagingData, error) {
	if s == nil {
		return TextureStagingData{}, fmt.Errorf("image source is nil")
	}

	var img image.Image
	var err error

	if len(s.Data) > 0 {
		img, _, err = image.Decode(bytes.NewReader(s.Data))
		if err != nil {
			return TextureStagingData{}, fmt.Errorf("failed to decode image %s: %w", s.Name, err)
		}
	} else if s.Path != "" {
		file, fileErr := os.Open(s.Path)
		if fileErr != nil {
			return TextureStagingData{}, fmt.Errorf("failed to open image file %s: %w", s.Path, fileErr)
		}
		defer file.Close()

		img, _, err = image.Decode(file)
		if err != nil {
			return TextureStagingData{}, fmt.Errorf("failed to decode image file %s: %w", s.Path, err)
		}
	} else {
		return TextureStagingData{}, fmt.Errorf("image source has neither data nor path")
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	}, nil
}
