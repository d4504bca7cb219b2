// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package mar

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestAddAndWrite(t *testing.T) {
	builder, err := NewBuilder(Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	if err != nil {
		t.Error(err)
	}

	builder.Add("test", strings.NewReader("idunvovkjnreovmegihjbrqlkmfrjnb"))
	builder.Add("test2", strings.NewReader("idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb"))

	if len(builder.files) != 2 {
		t.Error("incorrect number of files present")
	}

	var buf bytes.Buffer
	num, err := builder.WriteTo(&buf)
	if err != nil {
		t.Error(err)
	}
	if num != int64(buf.Len()) {
		t.Errorf("reported %d bytes written, buffer holds %d", num, buf.Len())
	}

	if !bytes.HasPrefix(buf.Bytes(), magic[:]) {
		t.Error("archive does not start with the magic bytes")
	}
}

func TestWriteIndexOffsets(t *testing.T) {
	builder, err := NewBuilder(Header{Version: 1})
	if err != nil {
		t.Error(err)
	}

	builder.Add("first", strings.NewReader(strings.Repeat("a", 512)))
	builder.Add("second", strings.NewReader(strings.Repeat("b", 256)))

	var buf bytes.Buffer
	if _, err := builder.WriteTo(&buf); err != nil {
		t.Error(err)
	}

	ar, err := Open(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Error(err)
	}

	index := ar.Index()
	if len(index) != 2 {
		t.Fatalf("expected 2 index entries, got %d", len(index))
	}
	if index[0].Offset != 0 {
		t.Error("first entry does not start at the data section")
	}
	if index[1].Offset != index[0].CompressedSize {
		t.Error("second entry does not follow the first")
	}
	if index[0].Size != 512 || index[1].Size != 256 {
		t.Error("index reports wrong uncompressed sizes")
	}
}
