// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package mar

import (
	"io"
	"io/ioutil"
	"strings"

	"github.com/pierrec/lz4"
)

// Open opens the mar archive from r. It will also check
// if the file is actually a mar archive, will return an error
// when file incorrect.
func Open(r io.ReaderAt) (*Archive, error) {
	magicBytes := make([]byte, MagicLength)
	if num, err := r.ReadAt(magicBytes, 0); err != nil {
		return nil, err
	} else if num < MagicLength || strings.Compare(string(magicBytes), string(magic[:])) != 0 {
		return nil, ErrFileFormat
	}

	headerSizeBytes := make([]byte, HeaderSizeNumberLength)
	if num, err := r.ReadAt(headerSizeBytes, MagicLength); err != nil {
		return nil, err
	} else if num < HeaderSizeNumberLength {
		return nil, ErrFileFormat
	}

	headerSize, err := binaryToint64(headerSizeBytes)
	if err != nil {
		return nil, ErrFileFormat
	}

	headerBytes := make([]byte, headerSize)
	if num, err := r.ReadAt(headerBytes, MagicLength+HeaderSizeNumberLength); err != nil {
		return nil, err
	} else if int64(num) < headerSize {
		return nil, ErrFileFormat
	}

	var header Header
	if err := gobDecode(&header, headerBytes); err != nil {
		return nil, ErrFileFormat
	}

	return &Archive{
		reader:     r,
		header:     header,
		dataOffset: MagicLength + HeaderSizeNumberLength + headerSize,
	}, nil
}

// Archive provides concurrent io for a mar file, and can provide
// an io.Reader for each file separately to perform actions on.
// Index offsets are known up front, readers for different files
// never contend.
type Archive struct {
	reader     io.ReaderAt
	header     Header
	dataOffset int64
}

// Header returns a copy of the archive header.
func (a *Archive) Header() Header {
	return a.header
}

// Index returns the file index of the archive.
func (a *Archive) Index() []IndexEntry {
	index := make([]IndexEntry, len(a.header.Index))
	copy(index, a.header.Index)
	return index
}

func (a *Archive) entry(name string) (IndexEntry, bool) {
	for _, e := range a.header.Index {
		if e.Name == name {
			return e, true
		}
	}
	return IndexEntry{}, false
}

// ReadAll returns the entire contents of a file with a given name
func (a *Archive) ReadAll(name string) ([]byte, error) {
	reader, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	return ioutil.ReadAll(reader)
}

// Open returns a Reader for a file in the Archive
func (a *Archive) Open(name string) (*Reader, error) {
	entry, ok := a.entry(name)
	if !ok {
		return nil, ErrNotFound
	}

	section := io.NewSectionReader(a.reader, a.dataOffset+entry.Offset, entry.CompressedSize)
	return &Reader{
		entry:      entry,
		decompress: lz4.NewReader(section),
	}, nil
}

// Reader is a reader for a single file in an Archive.
// Abstracts away the location that needs to be known.
// Data is decompressed on the fly as it is read.
type Reader struct {
	entry      IndexEntry
	decompress *lz4.Reader
}

// Size returns the decompressed size of the file.
func (r *Reader) Size() int64 {
	return r.entry.Size
}

// Read reads already decompressed data
func (r *Reader) Read(p []byte) (n int, err error) {
	return r.decompress.Read(p)
}
