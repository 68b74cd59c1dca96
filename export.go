package pe

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

type ImageExportDirectory struct {
	Characteristics       uint32
	TimeDateStamp         uint32
	MajorVersion          uint16
	MinorVersion          uint16
	Name                  uint32
	Base                  uint32
	NumberOfFunctions     uint32
	NumberOfNames         uint32
	AddressOfFunctions    uint32
	AddressOfNames        uint32
	AddressOfNameOrdinals uint32
}

// Exports returns the exported names in name pointer table order.
func (f *File) Exports() []string {
	exports := make([]string, len(f.exports))
	copy(exports, f.exports)
	return exports
}

// ExportDirectory returns the export directory record, if one was read.
func (f *File) ExportDirectory() (ImageExportDirectory, bool) {
	if f.exportDir == nil {
		return ImageExportDirectory{}, false
	}
	return *f.exportDir, true
}

// ExportModuleName is the DLL name recorded in the export directory.
func (f *File) ExportModuleName() string {
	return f.exportName
}

func (f *File) readExportDirectory() {
	edd := f.OptionalHeader.DataDirectory[ImageDirectoryEntryExport]
	if edd.Absent() {
		return
	}

	translate, err := f.directoryTranslator(edd, ".edata")
	if err != nil {
		f.addAnomaly("export directory skipped: %v", err)
		return
	}
	offset, err := translate(edd.VirtualAddress)
	if err != nil {
		f.addAnomaly("export directory skipped: %v", err)
		return
	}

	var dir ImageExportDirectory
	if err := f.r.readStruct(&dir, offset); err != nil {
		f.addAnomaly("export directory skipped: %v", err)
		return
	}
	f.exportDir = &dir

	if dir.NumberOfFunctions != dir.NumberOfNames {
		f.addAnomaly("export directory has %d functions and %d names", dir.NumberOfFunctions, dir.NumberOfNames)
	}

	if dir.Name != 0 {
		if name, err := f.readStringAtRVA(dir.Name, translate); err != nil {
			f.addAnomaly("export module name: %v", err)
		} else {
			f.exportName = name
		}
	}

	names, err := f.readExportNames(&dir, translate)
	f.exports = names
	if err != nil {
		f.addAnomaly("export names: %v", err)
	}
}

// readExportNames resolves the name pointer table. NumberOfNames alone sets
// the length. Names resolved before a failure are returned with the error.
func (f *File) readExportNames(dir *ImageExportDirectory, translate rvaTranslator) ([]string, error) {
	count := dir.NumberOfNames
	if count == 0 {
		return nil, nil
	}
	if count > maxExportNames {
		return nil, errors.Errorf("%d names exceeds the limit of %d", count, maxExportNames)
	}
	if dir.AddressOfNames == 0 {
		return nil, errors.Errorf("%d names but no name pointer table", count)
	}

	tableOffset, err := translate(dir.AddressOfNames)
	if err != nil {
		return nil, errors.WithMessage(err, "name pointer table")
	}
	table, err := f.r.ReadAt(tableOffset, int(count)*4)
	if err != nil {
		return nil, errors.WithMessage(err, "name pointer table")
	}

	names := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		rva := binary.LittleEndian.Uint32(table[i*4:])
		if rva == 0 {
			return names, errors.Errorf("name %d has a zero rva", i)
		}
		name, err := f.readStringAtRVA(rva, translate)
		if err != nil {
			return names, errors.WithMessagef(err, "name %d", i)
		}
		names = append(names, name)
	}
	return names, nil
}

func (f *File) readStringAtRVA(rva uint32, translate rvaTranslator) (string, error) {
	offset, err := translate(rva)
	if err != nil {
		return "", err
	}
	s, err := f.r.ReadCString(offset)
	if err != nil {
		return "", err
	}
	return string(s), nil
}
