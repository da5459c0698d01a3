package camera

import (
	"encoding/binary"
	"math"
)

// UniformSize is the size of the camera uniform in bytes (std140 / WGSL aligned).
const UniformSize = 80

// UniformWGSL is the WGSL declaration matching the Uniform layout.
const UniformWGSL = `struct CameraUniform {
    view_proj: mat4x4<f32>,
    position: vec3<f32>,
};`

// Uniform is the GPU-aligned representation of the camera uniform buffer.
type Uniform struct {
	ViewProj       [16]float32 // offset  0: combined view-projection matrix (mat4x4<f32>)
	CameraPosition [3]float32  // offset 64: world-space camera position (vec3<f32>)
	_pad           float32     // offset 76: padding to 80 bytes
}

// Marshal serializes the uniform into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized UniformSize bytes
func (g *Uniform) Marshal() []byte {
	buf := make([]byte, UniformSize)
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.ViewProj[i]))
	}
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.CameraPosition[i]))
	}
	return buf
}
