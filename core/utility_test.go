// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"image"
	"image/color"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/devblok/mirage/core"
)

func TestShaderFilesFromDirectory(t *testing.T) {
	dir, err := ioutil.TempDir("", "mirage-shaders")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	files := map[string]core.ShaderType{
		"terrain.vert.spv": core.VertexShaderType,
		"terrain.frag.spv": core.FragmentShaderType,
		"sky.vert.spv":     core.VertexShaderType,
	}
	for name := range files {
		if err := ioutil.WriteFile(filepath.Join(dir, name), []byte{0, 0, 0, 0}, 0644); err != nil {
			t.Fatal(err)
		}
	}
	// Files the loader has to skip over.
	for _, name := range []string{"terrain.vert", "notes.txt", "bad.name.vert.spv"} {
		if err := ioutil.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	paths, types, err := core.ShaderFilesFromDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != len(files) {
		t.Fatalf("expected %d shader files, got %d: %v", len(files), len(paths), paths)
	}
	for idx, path := range paths {
		want, ok := files[filepath.Base(path)]
		if !ok {
			t.Errorf("unexpected shader file loaded: %s", path)
			continue
		}
		if types[idx] != want {
			t.Errorf("%s loaded with type %d, want %d", path, types[idx], want)
		}
	}
}

func TestShaderFilesFromMissingDirectory(t *testing.T) {
	if _, _, err := core.ShaderFilesFromDirectory("does-not-exist"); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestGetPixels(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 60), G: uint8(y * 60), B: 128, A: 255})
		}
	}

	pixels, err := core.GetPixels(img, 4*4)
	if err != nil {
		t.Fatal(err)
	}
	if len(pixels) != 4*4*4 {
		t.Fatalf("expected %d bytes, got %d", 4*4*4, len(pixels))
	}
	// Second row, second pixel.
	off := 4*4 + 4
	if pixels[off] != 60 || pixels[off+1] != 60 || pixels[off+2] != 128 || pixels[off+3] != 255 {
		t.Errorf("pixel (1,1) came out as %v", pixels[off:off+4])
	}
}
