package main

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/h2non/filetype"
	pefile "github.com/wanglei-coder/pereader"
	"github.com/xyproto/env/v2"
)

var (
	filename string
	display  string
)

func init() {
	flag.StringVar(&filename, "filename", "", "Please enter the file path")
	flag.StringVar(&display, "display", "all", "Field to display: sections, imports, exports, all")
	flag.Parse()
}

type Info struct {
	FileType         string
	MachineType      uint16
	EntryPoint       uint32
	CompilationTime  uint32
	Is64             bool
	ImpHash          string               `json:",omitempty"`
	ExportModuleName string               `json:",omitempty"`
	Imports          []pefile.ImportEntry `json:",omitempty"`
	Exports          []string             `json:",omitempty"`
	Sections         []*Section           `json:",omitempty"`
	Overlay          *Overlay             `json:",omitempty"`
	Anomalies        []string             `json:",omitempty"`
}

type Overlay struct {
	MD5      string
	FileType string
	Offset   int64
	Size     int64
	Entropy  float64
}

type Section struct {
	Name           string
	MD5            string
	Flags          string
	RawSize        uint32
	VirtualAddress uint32
	VirtualSize    uint32
	Entropy        float64
}

func getSections(f *pefile.File) []*Section {
	all := f.Sections()
	sections := make([]*Section, 0, len(all))
	for i := range all {
		s := &all[i]
		sections = append(sections, &Section{
			Name:           s.Name,
			RawSize:        s.Size,
			VirtualAddress: s.VirtualAddress,
			VirtualSize:    s.VirtualSize,
			Flags:          s.Flags(),
			MD5:            s.MD5(),
			Entropy:        s.Entropy(),
		})
	}
	return sections
}

func getOverlay(f *pefile.File) *Overlay {
	rs := f.Overlay()
	if rs == nil {
		return nil
	}

	overlay := Overlay{
		Offset: f.OverlayOffset(),
		Size:   rs.Size(),
	}

	hasher := md5.New()
	var entropyCalculator pefile.EntropyCalculator
	ws := io.MultiWriter(hasher, &entropyCalculator)
	_, _ = io.Copy(ws, rs)
	overlay.MD5 = hex.EncodeToString(hasher.Sum(nil))
	overlay.Entropy = entropyCalculator.Sum()

	data := make([]byte, 1024)
	n, _ := rs.ReadAt(data, 0)
	overlay.FileType = GetFileType(data[:n])
	return &overlay
}

func main() {
	opts := &pefile.Options{
		MaxStringLength: env.Int("PEREADER_MAX_STRING", pefile.DefaultMaxStringLength),
		DisableMmap:     env.Bool("PEREADER_NO_MMAP"),
	}
	if env.Bool("PEREADER_VERBOSE") {
		opts.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	f, err := pefile.NewFile(filename, opts)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	info := Info{
		CompilationTime: f.FileHeader.TimeDateStamp,
		MachineType:     f.FileHeader.Machine,
		EntryPoint:      f.OptionalHeader.AddressOfEntryPoint,
		Is64:            f.Is64,
		Anomalies:       f.Anomalies(),
	}

	head := make([]byte, 262)
	n, _ := f.ReadAt(head, 0)
	info.FileType = GetFileType(head[:n])

	switch display {
	case "sections":
		info.Sections = getSections(f)
	case "imports":
		info.Imports = f.Imports()
		info.ImpHash, _ = f.ImpHash()
	case "exports":
		info.Exports = f.Exports()
		info.ExportModuleName = f.ExportModuleName()
	case "all":
		info.Sections = getSections(f)
		info.Imports = f.Imports()
		info.ImpHash, _ = f.ImpHash()
		info.Exports = f.Exports()
		info.ExportModuleName = f.ExportModuleName()
		info.Overlay = getOverlay(f)
	default:
		log.Fatalf("invalid display field %q", display)
	}

	data, _ := json.MarshalIndent(&info, "", "    ")
	fmt.Printf("%s\n", data)
}

func GetFileType(data []byte) string {
	kind, _ := filetype.Match(data)
	if kind == filetype.Unknown {
		return "Data"
	}
	return kind.MIME.Value
}
