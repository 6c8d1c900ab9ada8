package xlsxparser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Opener resolves source ids to workbooks inside a directory.
type Opener struct {
	dir string
}

// NewOpener returns an opener rooted at dir.
func NewOpener(dir string) *Opener {
	return &Opener{dir: dir}
}

// Path maps a source id to its workbook path. An id already carrying a
// workbook extension is used as the file name; otherwise ".xlsx" is added.
// Ids that would leave the directory are rejected.
func (o *Opener) Path(sourceID string) (string, error) {
	id := strings.TrimSpace(sourceID)
	if id == "" {
		return "", fmt.Errorf("source id is empty")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") || filepath.IsAbs(id) {
		return "", fmt.Errorf("invalid source id %q", id)
	}

	switch strings.ToLower(filepath.Ext(id)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
	default:
		id += ".xlsx"
	}
	return filepath.Join(o.dir, id), nil
}

// Open opens the workbook for sourceID.
func (o *Opener) Open(sourceID string) (*Workbook, error) {
	path, err := o.Path(sourceID)
	if err != nil {
		return nil, err
	}
	return OpenWorkbook(path)
}
