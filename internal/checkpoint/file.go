package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var errEmptyFile = errors.New("checkpoint file is empty")

// readLocal returns the trimmed file content. An empty file is an error.
func readLocal(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading checkpoint file: %w", err)
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", errEmptyFile
	}
	return v, nil
}

// writeLocal replaces the file through a temp file and rename so readers
// never see a partial write.
func writeLocal(path, ts string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp checkpoint file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(ts); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing checkpoint file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing checkpoint file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing checkpoint file: %w", err)
	}
	return nil
}
