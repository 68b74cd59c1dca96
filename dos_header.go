package pe

import (
	"github.com/pkg/errors"
)

type DOSHeader struct {
	Magic                    uint16
	BytesOnLastPageOfFile    uint16
	PagesInFile              uint16
	Relocations              uint16
	SizeOfHeader             uint16
	MinExtraParagraphsNeeded uint16
	MaxExtraParagraphsNeeded uint16
	InitialSS                uint16
	InitialSP                uint16
	Checksum                 uint16
	InitialIP                uint16
	InitialCS                uint16
	AddressOfRelocationTable uint16
	OverlayNumber            uint16
	ReservedWords1           [4]uint16
	OEMIdentifier            uint16
	OEMInformation           uint16
	ReservedWords2           [10]uint16
	AddressOfNewEXEHeader    uint32
}

func (f *File) readDOSHeader() error {
	// The signature is checked on its own first so that anything not starting
	// with MZ is rejected as such, however short it is.
	magic, err := f.r.ReadUint16(0)
	if err != nil {
		return errors.WithMessage(err, "failure to read DOS signature")
	}
	if magic != ImageDOSSignature {
		return errors.Wrapf(ErrInvalidDosSignature, "found %#04x", magic)
	}

	if err := f.r.readStruct(&f.DOSHeader, 0); err != nil {
		return errors.WithMessage(err, "failure to read DOS header")
	}
	return nil
}
