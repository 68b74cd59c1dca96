package pe

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// imageSectionHeader is the on-disk IMAGE_SECTION_HEADER record.
type imageSectionHeader struct {
	Name                 [8]uint8
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

type SectionHeader struct {
	Name                 string
	RawName              [8]byte
	VirtualSize          uint32
	VirtualAddress       uint32
	Size                 uint32
	Offset               uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

type Section struct {
	SectionHeader

	sr *io.SectionReader
}

// contains reports whether rva falls inside the section's virtual range.
func (s *Section) contains(rva uint32) bool {
	return s.VirtualAddress <= rva && uint64(rva) < uint64(s.VirtualAddress)+uint64(s.VirtualSize)
}

// Data reads and returns the raw contents of the section. It fails once the
// owning File is closed.
func (s *Section) Data() ([]byte, error) {
	dat := make([]byte, s.sr.Size())
	n, err := s.sr.ReadAt(dat, 0)
	if n == len(dat) {
		err = nil
	}
	return dat[0:n], err
}

// Open returns a new ReadSeeker reading the raw contents of the section.
func (s *Section) Open() io.ReadSeeker {
	return io.NewSectionReader(s.sr, 0, s.sr.Size())
}

func (s *Section) MD5() string {
	hasher := md5.New()
	_, _ = io.Copy(hasher, s.Open())
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

func (s *Section) Entropy() float64 {
	var e EntropyCalculator
	_, _ = io.Copy(&e, s.Open())
	return e.Sum()
}

func (s *Section) Flags() (flags string) {
	if (ImageScnMemRead & s.Characteristics) == ImageScnMemRead {
		flags += "r"
	}
	if (ImageScnMemExecute & s.Characteristics) == ImageScnMemExecute {
		flags += "x"
	}
	if (ImageScnMemWrite & s.Characteristics) == ImageScnMemWrite {
		flags += "w"
	}
	return flags
}

func (f *File) sectionTableOffset() int64 {
	return f.optionalHeaderOffset() + int64(f.FileHeader.SizeOfOptionalHeader)
}

func (f *File) readSections() error {
	count := int(f.FileHeader.NumberOfSections)
	data, err := f.r.ReadAt(f.sectionTableOffset(), count*SectionHeaderSize)
	if err != nil {
		return errors.WithMessage(err, "failure to read section table")
	}

	headers := make([]imageSectionHeader, count)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, headers); err != nil {
		return errors.WithMessage(err, "failure to decode section table")
	}

	f.sections = make([]*Section, 0, count)
	for _, sh := range headers {
		s := new(Section)
		s.SectionHeader = SectionHeader{
			Name:                 cString(sh.Name[:]),
			RawName:              sh.Name,
			VirtualSize:          sh.VirtualSize,
			VirtualAddress:       sh.VirtualAddress,
			Size:                 sh.SizeOfRawData,
			Offset:               sh.PointerToRawData,
			PointerToRelocations: sh.PointerToRelocations,
			PointerToLineNumbers: sh.PointerToLineNumbers,
			NumberOfRelocations:  sh.NumberOfRelocations,
			NumberOfLineNumbers:  sh.NumberOfLineNumbers,
			Characteristics:      sh.Characteristics,
		}
		var r2 io.ReaderAt
		if sh.PointerToRawData == 0 { // .bss must have all 0s
			r2 = zeroReaderAt{}
		} else {
			r2 = f.r.ReaderAt()
		}
		s.sr = io.NewSectionReader(r2, int64(s.Offset), int64(s.Size))
		f.sections = append(f.sections, s)
	}
	return nil
}

// Sections returns a copy of the section table in file order.
func (f *File) Sections() []Section {
	sections := make([]Section, len(f.sections))
	for i, s := range f.sections {
		sections[i] = *s
	}
	return sections
}

// SectionByName returns the first section whose raw 8 byte name contains
// name, so ".text" also finds ".textbss".
func (f *File) SectionByName(name []byte) (Section, error) {
	if s := f.sectionByName(name); s != nil {
		return *s, nil
	}
	return Section{}, errors.Wrapf(ErrSectionNotFound, "%q", name)
}

func (f *File) sectionByName(name []byte) *Section {
	for _, s := range f.sections {
		if bytes.Contains(s.RawName[:], name) {
			return s
		}
	}
	return nil
}

// Section returns the first section named exactly name, or nil.
func (f *File) Section(name string) *Section {
	for _, s := range f.sections {
		if s.Name == name {
			c := *s
			return &c
		}
	}
	return nil
}

// cString converts ASCII byte sequence b to string.
// It stops once it finds 0 or reaches end of b.
func cString(b []byte) string {
	i := bytes.IndexByte(b, 0)
	if i == -1 {
		i = len(b)
	}
	return string(b[:i])
}

// zeroReaderAt is ReaderAt that reads 0s.
type zeroReaderAt struct{}

// ReadAt writes len(p) 0s into p.
func (w zeroReaderAt) ReadAt(p []byte, off int64) (n int, err error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
