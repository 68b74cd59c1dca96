package pe

import (
	"github.com/pkg/errors"
)

// resolveRVA maps rva to a file offset through the first section, in table
// order, whose virtual range contains it. Overlapping sections are resolved
// by the earlier one.
func resolveRVA(sections []*Section, rva uint32) (int64, error) {
	for _, s := range sections {
		if s.contains(rva) {
			return int64(s.Offset) + int64(rva-s.VirtualAddress), nil
		}
	}
	return 0, errors.Wrapf(ErrUnmappedRva, "rva %#x", rva)
}

// OffsetFromRVA translates rva to a file offset. An RVA of 0 means absent and
// should not be passed in.
func (f *File) OffsetFromRVA(rva uint32) (int64, error) {
	return resolveRVA(f.sections, rva)
}

// rvaTranslator maps an RVA found inside a directory to a file offset.
type rvaTranslator func(rva uint32) (int64, error)

// directoryTranslator picks how RVAs of directory dd are translated. The data
// directory is resolved through the section table. When that fails and a
// section named like legacyName exists, the legacy rule is used: that
// section's raw data is taken to start at the directory's RVA.
func (f *File) directoryTranslator(dd DataDirectory, legacyName string) (rvaTranslator, error) {
	_, err := f.OffsetFromRVA(dd.VirtualAddress)
	if err == nil {
		return f.OffsetFromRVA, nil
	}

	s := f.sectionByName([]byte(legacyName))
	if s == nil {
		return nil, err
	}
	f.addAnomaly("directory rva %#x is not mapped by any section, using the raw data of section %q", dd.VirtualAddress, s.Name)

	base := dd.VirtualAddress
	offset := int64(s.Offset)
	return func(rva uint32) (int64, error) {
		if rva < base {
			return 0, errors.Wrapf(ErrUnmappedRva, "rva %#x is below directory start %#x", rva, base)
		}
		return offset + int64(rva-base), nil
	}, nil
}
