// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package mar_test

import (
	"bytes"
	"errors"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/exp/mmap"

	"github.com/devblok/mirage/utility/mar"
)

func buildTestArchive(t *testing.T) []byte {
	t.Helper()

	builder, err := mar.NewBuilder(mar.Header{
		Author:  "devblok",
		Version: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	builder.Add("test/test1.txt", strings.NewReader("this is a test"))
	builder.Add("test/test2.txt", strings.NewReader("this is another test"))

	var buf bytes.Buffer
	if _, err := builder.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func readFileAndCompare(f *mar.Reader, expected string) error {
	result, err := ioutil.ReadAll(f)
	if err != nil {
		return err
	}
	if strings.Compare(string(result), expected) != 0 {
		return errors.New("test string does not match up")
	}
	return nil
}

func TestOpen(t *testing.T) {
	ar, err := mar.Open(bytes.NewReader(buildTestArchive(t)))
	if err != nil {
		t.Error(err)
	}

	if len(ar.Index()) != 2 {
		t.Error("incorrect number of index entries")
	}
}

func TestOpenmmap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opentest.mar")
	if err := ioutil.WriteFile(path, buildTestArchive(t), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := mmap.Open(path)
	if err != nil {
		t.Error(err)
	}
	defer r.Close()

	ar, err := mar.Open(r)
	if err != nil {
		t.Error(err)
	}

	t.Log(ar.Header())
}

func TestOpenNotAnArchive(t *testing.T) {
	_, err := mar.Open(bytes.NewReader([]byte("definitely not an archive")))
	if !errors.Is(err, mar.ErrFileFormat) {
		t.Errorf("expected ErrFileFormat, got %v", err)
	}
}

func TestOpenAndRead(t *testing.T) {
	ar, err := mar.Open(bytes.NewReader(buildTestArchive(t)))
	if err != nil {
		t.Error(err)
	}

	if f, err := ar.Open("test/test1.txt"); err != nil {
		t.Error(err)
	} else if err := readFileAndCompare(f, "this is a test"); err != nil {
		t.Error(err)
	}

	if f, err := ar.Open("test/test2.txt"); err != nil {
		t.Error(err)
	} else if err := readFileAndCompare(f, "this is another test"); err != nil {
		t.Error(err)
	}
}

func TestOpenAndReadAll(t *testing.T) {
	ar, err := mar.Open(bytes.NewReader(buildTestArchive(t)))
	if err != nil {
		t.Error(err)
	}

	data, err := ar.ReadAll("test/test2.txt")
	if err != nil {
		t.Error(err)
	}
	if string(data) != "this is another test" {
		t.Error("contents do not match")
	}
}

func TestOpenMissingFile(t *testing.T) {
	ar, err := mar.Open(bytes.NewReader(buildTestArchive(t)))
	if err != nil {
		t.Error(err)
	}

	if _, err := ar.Open("no/such/file"); !errors.Is(err, mar.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := ar.ReadAll("no/such/file"); !errors.Is(err, mar.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
