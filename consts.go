package pe

// DefaultMaxStringLength bounds a null terminated string read when
// Options.MaxStringLength is unset.
const DefaultMaxStringLength = 4096

const ImageDOSSignature = 0x5A4D // MZ

const ImageNTHeaderSignature = 0x00004550

const (
	ImageNtOptionalHdr32Magic = 0x10b
	ImageNtOptionalHdr64Magic = 0x20b
)

const (
	ImageFileMachineI386  = 0x14c
	ImageFileMachineAMD64 = 0x8664
	ImageFileMachineARM64 = 0xaa64
)

// IMAGE_DIRECTORY_ENTRY constants
const (
	ImageDirectoryEntryExport        = 0
	ImageDirectoryEntryImport        = 1
	ImageDirectoryEntryResource      = 2
	ImageDirectoryEntryException     = 3
	ImageDirectoryEntrySecurity      = 4
	ImageDirectoryEntryBaseReLoc     = 5
	ImageDirectoryEntryDebug         = 6
	ImageDirectoryEntryArchitecture  = 7
	ImageDirectoryEntryGlobalPtr     = 8
	ImageDirectoryEntryTls           = 9
	ImageDirectoryEntryLoadConfig    = 10
	ImageDirectoryEntryBoundImport   = 11
	ImageDirectoryEntryIat           = 12
	ImageDirectoryEntryDelayImport   = 13
	ImageDirectoryEntryComDescriptor = 14
)

const ImageNumberOfDirectoryEntries = 16

const (
	ImageScnMemExecute = 0x20000000
	ImageScnMemRead    = 0x40000000
	ImageScnMemWrite   = 0x80000000
)

const (
	imageOrdinalFlag32   = uint32(0x80000000)
	imageOrdinalFlag64   = uint64(0x8000000000000000)
	addressMask32        = uint32(0x7fffffff)
	maxImportDescriptors = 0x1000
	maxImportThunks      = 0x4000
	maxExportNames       = 0x10000
)

const (
	DOSHeaderSize        = 0x40
	NtHeaderSize         = 0x18 // signature and IMAGE_FILE_HEADER
	DataDirectoriesSize  = ImageNumberOfDirectoryEntries * 8
	SectionHeaderSize    = 40
	ImportDescriptorSize = 20
	ExportDirectorySize  = 40
)
