package common

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCoalesce(t *testing.T) {
	if got := Coalesce("", "a", "b"); got != "a" {
		t.Errorf("Coalesce() = %q, want a", got)
	}
	if got := Coalesce(0, 0); got != 0 {
		t.Errorf("Coalesce() = %d, want 0", got)
	}
}

func TestLabelOr(t *testing.T) {
	if got := LabelOr("mine", "buffer"); got != "mine" {
		t.Errorf("LabelOr() = %q, want mine", got)
	}
	a, b := LabelOr("", "buffer"), LabelOr("", "buffer")
	if !strings.HasPrefix(a, "buffer-") || len(a) != len("buffer-")+8 {
		t.Errorf("LabelOr() = %q, want buffer-xxxxxxxx", a)
	}
	if a == b {
		t.Errorf("generated labels collide: %q", a)
	}
}

func TestTextureStagingValidate(t *testing.T) {
	tests := []struct {
		name    string
		staging TextureStagingData
		wantErr bool
	}{
		{name: "valid", staging: TextureStagingData{Pixels: make([]byte, 2*3*4), Width: 2, Height: 3}},
		{name: "short", staging: TextureStagingData{Pixels: make([]byte, 5), Width: 2, Height: 3}, wantErr: true},
		{name: "zero width", staging: TextureStagingData{Width: 0, Height: 3}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.staging.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrTextureSize) {
				t.Fatalf("Validate() = %v, want ErrTextureSize", err)
			}
		})
	}
}

func TestImageSourceDecode(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "img.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	for name, src := range map[string]*ImageSource{
		"memory": {Name: "mem", Data: buf.Bytes()},
		"file":   {Name: "file", Path: path},
	} {
		t.Run(name, func(t *testing.T) {
			staging, err := src.Decode()
			if err != nil {
				t.Fatal(err)
			}
			if staging.Width != 3 || staging.Height != 2 {
				t.Fatalf("decoded %dx%d, want 3x2", staging.Width, staging.Height)
			}
			if err := staging.Validate(); err != nil {
				t.Fatal(err)
			}
			i := (1*3 + 1) * BytesPerPixel
			if got := staging.Pixels[i : i+4]; !bytes.Equal(got, []byte{10, 20, 30, 255}) {
				t.Fatalf("pixel (1,1) = %v", got)
			}
		})
	}

	if _, err := (&ImageSource{Name: "empty"}).Decode(); err == nil {
		t.Fatal("Decode() of an empty source should fail")
	}
}

func TestMul4Identity(t *testing.T) {
	var id, m, out [16]float32
	Identity(id[:])
	for i := range m {
		m[i] = float32(i)
	}
	Mul4(out[:], id[:], m[:])
	if out != m {
		t.Fatalf("I * m = %v, want %v", out, m)
	}
}
