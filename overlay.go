package pe

import (
	"io"
)

// overlayOffset is the end of the furthest structure the image maps: the
// section table or a section's raw data. Bytes past it are overlay. Zero
// means there is none.
func (f *File) overlayOffset() int64 {
	largest := f.sectionTableOffset() + int64(len(f.sections))*SectionHeaderSize
	for _, s := range f.sections {
		end := int64(s.Offset) + int64(s.Size)
		if s.Offset == 0 || end > f.r.size {
			continue
		}
		if end > largest {
			largest = end
		}
	}

	// The certificate table is addressed by file offset and sits after the
	// sections, it is not overlay.
	cert := f.OptionalHeader.DataDirectory[ImageDirectoryEntrySecurity]
	if !cert.Absent() {
		end := int64(cert.VirtualAddress) + int64(cert.Size)
		if end <= f.r.size && end > largest {
			largest = end
		}
	}

	if largest < f.r.size {
		return largest
	}
	return 0
}

// OverlayOffset returns the file offset where overlay data starts, or 0.
func (f *File) OverlayOffset() int64 {
	return f.overlayOffset()
}

// Overlay returns a reader over data appended after the image, or nil.
func (f *File) Overlay() *io.SectionReader {
	offset := f.overlayOffset()
	if offset == 0 {
		return nil
	}
	return io.NewSectionReader(f.r.ReaderAt(), offset, f.r.size-offset)
}
