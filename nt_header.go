package pe

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

type NtHeader struct {
	Signature      uint32
	FileHeader     FileHeader
	OptionalHeader OptionalHeader
}

type FileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

// Absent reports whether the entry points at no table.
func (d DataDirectory) Absent() bool {
	return d.VirtualAddress == 0 || d.Size == 0
}

// optionalHeaderPrefix is the part of the optional header that has the same
// layout in PE32 and PE32+.
type optionalHeaderPrefix struct {
	Magic                   uint16
	MajorLinkerVersion      uint8
	MinorLinkerVersion      uint8
	SizeOfCode              uint32
	SizeOfInitializedData   uint32
	SizeOfUninitializedData uint32
	AddressOfEntryPoint     uint32
	BaseOfCode              uint32
}

// OptionalHeader holds the declared optional header bytes. Only the common
// leading fields and the trailing data directories are decoded, their
// positions do not depend on whether the image is PE32 or PE32+.
type OptionalHeader struct {
	Magic                   uint16
	MajorLinkerVersion      uint8
	MinorLinkerVersion      uint8
	SizeOfCode              uint32
	SizeOfInitializedData   uint32
	SizeOfUninitializedData uint32
	AddressOfEntryPoint     uint32
	BaseOfCode              uint32
	NumberOfRvaAndSizes     uint32
	DataDirectory           [ImageNumberOfDirectoryEntries]DataDirectory
	Raw                     []byte
}

func (f *File) ntHeaderOffset() int64 {
	return int64(f.DOSHeader.AddressOfNewEXEHeader)
}

func (f *File) optionalHeaderOffset() int64 {
	return f.ntHeaderOffset() + NtHeaderSize
}

func (f *File) readNTHeader() error {
	data, err := f.r.ReadAt(f.ntHeaderOffset(), NtHeaderSize)
	if err != nil {
		return errors.WithMessage(err, "failure to read PE header")
	}

	f.Signature = binary.LittleEndian.Uint32(data[0:4])
	if f.Signature != ImageNTHeaderSignature {
		return errors.Wrapf(ErrInvalidPeSignature, "found %#08x at offset %#x", f.Signature, f.ntHeaderOffset())
	}

	if err := binary.Read(bytes.NewReader(data[4:]), binary.LittleEndian, &f.FileHeader); err != nil {
		return errors.WithMessage(err, "failure to decode file header")
	}
	return f.readOptionalHeader()
}

func (f *File) readOptionalHeader() error {
	size := int(f.FileHeader.SizeOfOptionalHeader)
	if size < DataDirectoriesSize {
		return errors.Wrapf(ErrTruncatedHeader, "optional header size(%d) is less than the %d bytes of data directories",
			size, DataDirectoriesSize)
	}

	raw, err := f.r.ReadAt(f.optionalHeaderOffset(), size)
	if err != nil {
		return errors.WithMessage(err, "failure to read optional header")
	}

	var prefix optionalHeaderPrefix
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &prefix); err != nil {
		return errors.WithMessage(err, "failure to decode optional header")
	}

	oh := &f.OptionalHeader
	oh.Raw = raw
	oh.Magic = prefix.Magic
	oh.MajorLinkerVersion = prefix.MajorLinkerVersion
	oh.MinorLinkerVersion = prefix.MinorLinkerVersion
	oh.SizeOfCode = prefix.SizeOfCode
	oh.SizeOfInitializedData = prefix.SizeOfInitializedData
	oh.SizeOfUninitializedData = prefix.SizeOfUninitializedData
	oh.AddressOfEntryPoint = prefix.AddressOfEntryPoint
	oh.BaseOfCode = prefix.BaseOfCode

	ddOffset := size - DataDirectoriesSize
	if err := binary.Read(bytes.NewReader(raw[ddOffset:]), binary.LittleEndian, &oh.DataDirectory); err != nil {
		return errors.WithMessage(err, "failure to read data directories")
	}

	// NumberOfRvaAndSizes is the last field before the data directories.
	if ddOffset >= 4 {
		oh.NumberOfRvaAndSizes = binary.LittleEndian.Uint32(raw[ddOffset-4 : ddOffset])
		if oh.NumberOfRvaAndSizes != ImageNumberOfDirectoryEntries {
			f.addAnomaly("optional header declares %d data directories, %d are read",
				oh.NumberOfRvaAndSizes, ImageNumberOfDirectoryEntries)
		}
	}

	switch oh.Magic {
	case ImageNtOptionalHdr32Magic:
		f.Is32 = true
	case ImageNtOptionalHdr64Magic:
		f.Is64 = true
	default:
		f.addAnomaly("optional header has unexpected Magic of %#x", oh.Magic)
	}
	return nil
}
