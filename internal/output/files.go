package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileKind selects which temp trace file a flush appends to.
type FileKind uint8

const (
	APITraceFile FileKind = iota
	KernelTimestampFile
	CopyTimestampFile
)

// Extension returns the file extension used for k.
func (k FileKind) Extension() string {
	switch k {
	case APITraceFile:
		return ".apitrace"
	case KernelTimestampFile:
		return ".kerneltstamp"
	case CopyTimestampFile:
		return ".copytstamp"
	default:
		return ".unknown"
	}
}

func (k FileKind) String() string {
	switch k {
	case APITraceFile:
		return "api"
	case KernelTimestampFile:
		return "kernel"
	case CopyTimestampFile:
		return "copy"
	default:
		return "unknown"
	}
}

// FileNamer maps a process and file kind to a path.
type FileNamer interface {
	FileName(pid int, kind FileKind) string
}

// DirNamer places files named "<pid><ext>" in Dir.
type DirNamer struct {
	Dir string
}

func (n DirNamer) FileName(pid int, kind FileKind) string {
	return filepath.Join(n.Dir, fmt.Sprintf("%d%s", pid, kind.Extension()))
}

// OpenAppend opens name for appending, creating it if needed.
func OpenAppend(fs afero.Fs, name string) (afero.File, error) {
	if err := fs.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", name, err)
	}
	f, err := fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}
