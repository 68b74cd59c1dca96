package pe

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// reader is a bounded, offset-addressed view of the image bytes. It has no
// cursor, every read names its offset.
type reader struct {
	ra        io.ReaderAt
	size      int64
	maxString int
	closer    io.Closer
	closed    bool
}

func newReader(ra io.ReaderAt, size int64, maxString int) *reader {
	if maxString <= 0 {
		maxString = DefaultMaxStringLength
	}
	return &reader{ra: ra, size: size, maxString: maxString}
}

type mmapCloser struct {
	m mmap.MMap
}

func (c *mmapCloser) Close() error {
	return c.m.Unmap()
}

// mapFile maps filename read-only. An empty file gets an empty reader, since
// a zero length mapping is rejected by the OS.
func mapFile(filename string, maxString int) (*reader, error) {
	fh, err := os.Open(filename)
	if err != nil {
		return nil, newIOError(err)
	}
	defer fh.Close()

	stat, err := fh.Stat()
	if err != nil {
		return nil, newIOError(err)
	}
	if stat.Size() == 0 {
		return newReader(bytes.NewReader(nil), 0, maxString), nil
	}

	m, err := mmap.Map(fh, mmap.RDONLY, 0)
	if err != nil {
		return nil, newIOError(errors.WithMessage(err, "fail to map file"))
	}
	r := newReader(bytes.NewReader(m), int64(len(m)), maxString)
	r.closer = &mmapCloser{m: m}
	return r, nil
}

func openFile(filename string, maxString int) (*reader, error) {
	fh, err := os.Open(filename)
	if err != nil {
		return nil, newIOError(err)
	}
	stat, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, newIOError(err)
	}
	r := newReader(fh, stat.Size(), maxString)
	r.closer = fh
	return r, nil
}

func (r *reader) Close() error {
	r.closed = true
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// ReaderAt returns an io.ReaderAt over the source that fails once the source
// is closed. A closed mapping must not be touched.
func (r *reader) ReaderAt() io.ReaderAt {
	return sourceReaderAt{r: r}
}

type sourceReaderAt struct {
	r *reader
}

func (s sourceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if s.r.closed {
		return 0, newIOError(os.ErrClosed)
	}
	return s.r.ra.ReadAt(p, off)
}

// ReadAt returns exactly length bytes starting at offset, or an error. It
// never returns a partial result.
func (r *reader) ReadAt(offset int64, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset > r.size || int64(length) > r.size-offset {
		return nil, errors.Wrapf(ErrTruncatedRead,
			"%d bytes at offset %#x, source size %#x", length, offset, r.size)
	}
	if r.closed {
		return nil, newIOError(os.ErrClosed)
	}
	data := make([]byte, length)
	if length == 0 {
		return data, nil
	}
	n, err := r.ra.ReadAt(data, offset)
	if n == length {
		return data, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, newIOError(err)
}

// ReadCString reads a null terminated string at offset and returns the bytes
// before the terminator. The scan is a single read of at most maxString bytes.
func (r *reader) ReadCString(offset int64) ([]byte, error) {
	if offset < 0 || offset >= r.size {
		return nil, errors.Wrapf(ErrTruncatedRead, "string at offset %#x, source size %#x", offset, r.size)
	}

	length := int64(r.maxString)
	if rest := r.size - offset; rest < length {
		length = rest
	}
	data, err := r.ReadAt(offset, int(length))
	if err != nil {
		return nil, err
	}

	if i := bytes.IndexByte(data, 0); i >= 0 {
		return data[:i:i], nil
	}
	if length < int64(r.maxString) {
		return nil, errors.Wrapf(ErrTruncatedRead, "string at offset %#x runs past the end of the source", offset)
	}
	return nil, errors.Wrapf(ErrUnterminatedString, "string at offset %#x is longer than %d bytes", offset, r.maxString)
}

// ReadUint16 reads a little-endian uint16 at offset.
func (r *reader) ReadUint16(offset int64) (uint16, error) {
	data, err := r.ReadAt(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

// ReadUint32 reads a little-endian uint32 at offset.
func (r *reader) ReadUint32(offset int64) (uint32, error) {
	data, err := r.ReadAt(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// readStruct decodes a fixed size little-endian structure at offset.
func (r *reader) readStruct(iface any, offset int64) error {
	data, err := r.ReadAt(offset, binary.Size(iface))
	if err != nil {
		return err
	}
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, iface)
}
