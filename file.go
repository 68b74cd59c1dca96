package pe

import (
	"bytes"
	"fmt"
	"io"
	"log"
)

// Options tunes how an image is opened. A nil *Options selects the defaults.
type Options struct {
	// MaxStringLength bounds every null terminated string read, in bytes.
	// Zero selects DefaultMaxStringLength.
	MaxStringLength int

	// DisableMmap makes NewFile read through the *os.File instead of mapping
	// it into memory.
	DisableMmap bool

	// Logger receives every anomaly as it is recorded.
	Logger *log.Logger
}

// File is a parsed PE image. Everything is read when the File is created;
// the accessors return copies.
type File struct {
	DOSHeader
	NtHeader

	Is64 bool
	Is32 bool

	sections   []*Section
	imports    []ImportEntry
	exports    []string
	exportDir  *ImageExportDirectory
	exportName string
	anomalies  []string

	logger *log.Logger
	r      *reader
}

// NewFile opens and parses the named image. The file is memory mapped
// read-only unless opts.DisableMmap is set.
func NewFile(filename string, opts *Options) (*File, error) {
	if opts == nil {
		opts = &Options{}
	}

	var (
		r   *reader
		err error
	)
	if opts.DisableMmap {
		r, err = openFile(filename, opts.MaxStringLength)
	} else {
		r, err = mapFile(filename, opts.MaxStringLength)
	}
	if err != nil {
		return nil, err
	}
	return newFile(r, opts)
}

// NewBytes parses an image held in memory.
func NewBytes(data []byte, opts *Options) (*File, error) {
	if opts == nil {
		opts = &Options{}
	}
	return newFile(newReader(bytes.NewReader(data), int64(len(data)), opts.MaxStringLength), opts)
}

// NewReader parses an image of size bytes read from r. The File does not
// close r.
func NewReader(r io.ReaderAt, size int64, opts *Options) (*File, error) {
	if opts == nil {
		opts = &Options{}
	}
	return newFile(newReader(r, size, opts.MaxStringLength), opts)
}

func newFile(r *reader, opts *Options) (*File, error) {
	f := &File{r: r, logger: opts.Logger}
	if err := f.parse(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return f, nil
}

// parse runs the header stages, any failure there is fatal. The import and
// export stages only record anomalies.
func (f *File) parse() error {
	if err := f.readDOSHeader(); err != nil {
		return err
	}
	if err := f.readNTHeader(); err != nil {
		return err
	}
	if err := f.readSections(); err != nil {
		return err
	}
	f.readImportDirectory()
	f.readExportDirectory()
	return nil
}

// Close releases the underlying source. Section data can no longer be read
// afterwards, the parsed tables stay valid.
func (f *File) Close() error {
	if f.r != nil {
		return f.r.Close()
	}
	return nil
}

// Size is the length of the image source in bytes.
func (f *File) Size() int64 {
	return f.r.size
}

// ReadAt reads raw bytes of the image source.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.r.ReaderAt().ReadAt(p, off)
}

// Anomalies lists the non fatal problems met while parsing.
func (f *File) Anomalies() []string {
	anomalies := make([]string, len(f.anomalies))
	copy(anomalies, f.anomalies)
	return anomalies
}

func (f *File) addAnomaly(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	f.anomalies = append(f.anomalies, msg)
	if f.logger != nil {
		f.logger.Printf("pe: %s", msg)
	}
}
