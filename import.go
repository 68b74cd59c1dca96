package pe

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

type ImageImportDescriptor struct {
	OriginalFirstThunk uint32
	TimeDateStamp      uint32
	ForwarderChain     uint32
	Name               uint32
	FirstThunk         uint32
}

// ImportEntry is one symbol imported by name.
type ImportEntry struct {
	Module string
	Name   string
	Hint   uint16
}

func (e ImportEntry) String() string {
	return e.Module + " : " + e.Name
}

// Imports returns the imported symbols ordered by descriptor, then by thunk.
// It is empty when the image has no readable import directory.
func (f *File) Imports() []ImportEntry {
	imports := make([]ImportEntry, len(f.imports))
	copy(imports, f.imports)
	return imports
}

func (f *File) readImportDirectory() {
	idd := f.OptionalHeader.DataDirectory[ImageDirectoryEntryImport]
	if idd.Absent() {
		return
	}

	translate, err := f.directoryTranslator(idd, ".idata")
	if err != nil {
		f.addAnomaly("import directory skipped: %v", err)
		return
	}
	offset, err := translate(idd.VirtualAddress)
	if err != nil {
		f.addAnomaly("import directory skipped: %v", err)
		return
	}

	count := idd.Size / ImportDescriptorSize
	if count == 0 {
		f.addAnomaly("import directory size %d is smaller than one descriptor", idd.Size)
		return
	}
	if count > maxImportDescriptors {
		f.addAnomaly("import directory declares %d descriptors, reading at most %d", count, maxImportDescriptors)
		count = maxImportDescriptors
	}

	// The all-zero terminator wins over the declared size, which is not
	// always accurate.
	for i := uint32(0); i < count; i++ {
		var desc ImageImportDescriptor
		if err := f.r.readStruct(&desc, offset+int64(i)*ImportDescriptorSize); err != nil {
			f.addAnomaly("import descriptor %d: %v", i, err)
			return
		}
		if desc == (ImageImportDescriptor{}) {
			return
		}

		entries, err := f.readImportDescriptor(&desc, translate)
		f.imports = append(f.imports, entries...)
		if err != nil {
			f.addAnomaly("import descriptor %d: %v", i, err)
		}
	}
}

// readImportDescriptor resolves the by-name symbols of one descriptor. On
// error the entries resolved before the failure are still returned.
func (f *File) readImportDescriptor(desc *ImageImportDescriptor, translate rvaTranslator) ([]ImportEntry, error) {
	if desc.Name == 0 {
		return nil, errors.New("descriptor has no module name")
	}
	module, err := f.readStringAtRVA(desc.Name, translate)
	if err != nil {
		return nil, errors.WithMessage(err, "module name")
	}

	// Prefer the lookup table, the address table holds bound addresses when
	// the descriptor was bound.
	thunkRVA := desc.OriginalFirstThunk
	if thunkRVA == 0 {
		if desc.TimeDateStamp != 0 {
			return nil, errors.Errorf("%s is bound and has no lookup table", module)
		}
		thunkRVA = desc.FirstThunk
	}
	if thunkRVA == 0 {
		return nil, errors.Errorf("%s has no thunk table", module)
	}
	thunkOffset, err := translate(thunkRVA)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s thunk table", module)
	}

	thunkSize := 4
	if f.Is64 {
		thunkSize = 8
	}

	var entries []ImportEntry
	for i := 0; i < maxImportThunks; i++ {
		data, err := f.r.ReadAt(thunkOffset+int64(i*thunkSize), thunkSize)
		if err != nil {
			return entries, errors.WithMessagef(err, "%s thunk %d", module, i)
		}

		var hintNameRVA uint32
		if f.Is64 {
			thunk := binary.LittleEndian.Uint64(data)
			if thunk == 0 {
				return entries, nil
			}
			if thunk&imageOrdinalFlag64 != 0 {
				continue
			}
			hintNameRVA = uint32(thunk) & addressMask32
		} else {
			thunk := binary.LittleEndian.Uint32(data)
			if thunk == 0 {
				return entries, nil
			}
			if thunk&imageOrdinalFlag32 != 0 {
				continue
			}
			hintNameRVA = thunk & addressMask32
		}

		entry, err := f.readHintName(module, hintNameRVA, translate)
		if err != nil {
			return entries, errors.WithMessagef(err, "%s thunk %d", module, i)
		}
		entries = append(entries, entry)
	}
	return entries, errors.Errorf("%s has more than %d thunks", module, maxImportThunks)
}

// readHintName reads an IMAGE_IMPORT_BY_NAME record, a 2 byte hint followed
// by the symbol name.
func (f *File) readHintName(module string, rva uint32, translate rvaTranslator) (ImportEntry, error) {
	offset, err := translate(rva)
	if err != nil {
		return ImportEntry{}, err
	}
	hint, err := f.r.ReadUint16(offset)
	if err != nil {
		return ImportEntry{}, err
	}
	name, err := f.r.ReadCString(offset + 2)
	if err != nil {
		return ImportEntry{}, err
	}
	return ImportEntry{Module: module, Name: string(name), Hint: hint}, nil
}

// ImpHash calculates the import hash.
func (f *File) ImpHash() (string, error) {
	if len(f.imports) == 0 {
		return "", errors.New("no imports found")
	}

	extensions := []string{"ocx", "sys", "dll"}
	normalizedImports := make([]string, 0, len(f.imports))
	for _, imp := range f.imports {
		var libName string
		parts := strings.Split(imp.Module, ".")
		if len(parts) == 2 && stringInSlice(strings.ToLower(parts[1]), extensions) {
			libName = parts[0]
		} else {
			libName = imp.Module
		}
		impStr := fmt.Sprintf("%s.%s", strings.ToLower(libName), strings.ToLower(imp.Name))
		normalizedImports = append(normalizedImports, impStr)
	}

	h := md5.New()
	_, _ = io.WriteString(h, strings.Join(normalizedImports, ","))
	return hex.EncodeToString(h.Sum(nil)), nil
}
