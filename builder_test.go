package pe

import (
	"encoding/binary"
)

// testPEOffset is where the synthetic images put the PE signature.
const testPEOffset = 0x40

type testSection struct {
	name   string
	va     uint32
	offset uint32
	vsize  uint32
	data   []byte
}

func (s *testSection) putUint16(rva uint32, v uint16) {
	binary.LittleEndian.PutUint16(s.data[rva-s.va:], v)
}

func (s *testSection) putUint32(rva uint32, v uint32) {
	binary.LittleEndian.PutUint32(s.data[rva-s.va:], v)
}

func (s *testSection) putUint64(rva uint32, v uint64) {
	binary.LittleEndian.PutUint64(s.data[rva-s.va:], v)
}

// putString writes str at rva. The section data starts zeroed, so the
// terminator is already there.
func (s *testSection) putString(rva uint32, str string) {
	copy(s.data[rva-s.va:], str)
}

// putHintName writes an IMAGE_IMPORT_BY_NAME record.
func (s *testSection) putHintName(rva uint32, hint uint16, name string) {
	s.putUint16(rva, hint)
	s.putString(rva+2, name)
}

// testImage builds a PE image in memory. Only the fields the parser reads are
// filled in, plus what debug/pe needs to accept the result.
type testImage struct {
	machine  uint16
	magic    uint16
	optSize  uint16
	dirs     [16]DataDirectory
	sections []*testSection
	trailer  []byte
}

func newTestImage() *testImage {
	return &testImage{machine: ImageFileMachineI386, magic: ImageNtOptionalHdr32Magic, optSize: 0xE0}
}

func newTestImage64() *testImage {
	return &testImage{machine: ImageFileMachineAMD64, magic: ImageNtOptionalHdr64Magic, optSize: 0xF0}
}

// addSection adds a section of size bytes, both virtual and raw, at virtual
// address va and file offset offset.
func (ti *testImage) addSection(name string, va, offset, size uint32) *testSection {
	s := &testSection{name: name, va: va, offset: offset, vsize: size, data: make([]byte, size)}
	ti.sections = append(ti.sections, s)
	return s
}

func (ti *testImage) setDirectory(index int, va, size uint32) {
	ti.dirs[index] = DataDirectory{VirtualAddress: va, Size: size}
}

func (ti *testImage) bytes() []byte {
	ohOffset := testPEOffset + NtHeaderSize
	stOffset := ohOffset + int(ti.optSize)
	size := stOffset + SectionHeaderSize*len(ti.sections)
	for _, s := range ti.sections {
		if end := int(s.offset) + len(s.data); end > size {
			size = end
		}
	}
	buf := make([]byte, size)

	buf[0], buf[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(buf[0x3C:], testPEOffset)

	copy(buf[testPEOffset:], "PE\x00\x00")
	fh := buf[testPEOffset+4:]
	binary.LittleEndian.PutUint16(fh[0:], ti.machine)
	binary.LittleEndian.PutUint16(fh[2:], uint16(len(ti.sections)))
	binary.LittleEndian.PutUint16(fh[16:], ti.optSize)
	binary.LittleEndian.PutUint16(fh[18:], 0x0102)

	oh := buf[ohOffset:stOffset]
	if len(oh) >= 2 {
		binary.LittleEndian.PutUint16(oh[0:], ti.magic)
	}
	if len(oh) >= 40 {
		if ti.magic == ImageNtOptionalHdr64Magic {
			binary.LittleEndian.PutUint64(oh[24:], 0x140000000)
		} else {
			binary.LittleEndian.PutUint32(oh[28:], 0x400000)
		}
		binary.LittleEndian.PutUint32(oh[32:], 0x1000)
		binary.LittleEndian.PutUint32(oh[36:], 0x200)
	}
	if len(oh) >= DataDirectoriesSize+4 {
		binary.LittleEndian.PutUint32(oh[len(oh)-DataDirectoriesSize-4:], ImageNumberOfDirectoryEntries)
	}
	if len(oh) >= DataDirectoriesSize {
		dd := oh[len(oh)-DataDirectoriesSize:]
		for i, d := range ti.dirs {
			binary.LittleEndian.PutUint32(dd[i*8:], d.VirtualAddress)
			binary.LittleEndian.PutUint32(dd[i*8+4:], d.Size)
		}
	}

	for i, s := range ti.sections {
		rec := buf[stOffset+i*SectionHeaderSize:]
		copy(rec[0:8], s.name)
		binary.LittleEndian.PutUint32(rec[8:], s.vsize)
		binary.LittleEndian.PutUint32(rec[12:], s.va)
		binary.LittleEndian.PutUint32(rec[16:], uint32(len(s.data)))
		binary.LittleEndian.PutUint32(rec[20:], s.offset)
		binary.LittleEndian.PutUint32(rec[36:], ImageScnMemRead|0x40)
		if s.offset != 0 {
			copy(buf[s.offset:], s.data)
		}
	}
	return append(buf, ti.trailer...)
}

// minimalImage has a single .text section and no directories.
func minimalImage() *testImage {
	ti := newTestImage()
	text := ti.addSection(".text", 0x1000, 0x200, 0x200)
	text.data[0] = 0xC3
	return ti
}

// kernel32Image imports ExitProcess from KERNEL32.DLL through an .idata
// section at rva 0x2000.
func kernel32Image() *testImage {
	ti := minimalImage()
	idata := ti.addSection(".idata", 0x2000, 0x400, 0x200)
	idata.putUint32(0x2000, 0x2028) // OriginalFirstThunk
	idata.putUint32(0x200C, 0x2060) // Name
	idata.putUint32(0x2010, 0x2030) // FirstThunk
	idata.putUint32(0x2028, 0x2040)
	idata.putUint32(0x2030, 0x2040)
	idata.putHintName(0x2040, 0x15F, "ExitProcess")
	idata.putString(0x2060, "KERNEL32.DLL")
	ti.setDirectory(ImageDirectoryEntryImport, 0x2000, 2*ImportDescriptorSize)
	return ti
}

// fooBarImage exports "Foo" and "Bar", in that order, through an .edata
// section at rva 0x3000.
func fooBarImage() *testImage {
	ti := minimalImage()
	edata := ti.addSection(".edata", 0x3000, 0x400, 0x200)
	edata.putUint32(0x300C, 0x3080) // Name
	edata.putUint32(0x3010, 1)      // Base
	edata.putUint32(0x3014, 2)      // NumberOfFunctions
	edata.putUint32(0x3018, 2)      // NumberOfNames
	edata.putUint32(0x301C, 0x3040) // AddressOfFunctions
	edata.putUint32(0x3020, 0x3050) // AddressOfNames
	edata.putUint32(0x3024, 0x3060) // AddressOfNameOrdinals
	edata.putUint32(0x3040, 0x1000)
	edata.putUint32(0x3044, 0x1010)
	edata.putUint32(0x3050, 0x3090)
	edata.putUint32(0x3054, 0x30A0)
	edata.putUint16(0x3060, 0)
	edata.putUint16(0x3062, 1)
	edata.putString(0x3080, "test.dll")
	edata.putString(0x3090, "Foo")
	edata.putString(0x30A0, "Bar")
	ti.setDirectory(ImageDirectoryEntryExport, 0x3000, 0xB0)
	return ti
}
