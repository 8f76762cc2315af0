package templatestore

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxZipEntryBytes caps a single extracted entry. Template packages hold a
// handful of raster assets; anything near this size is hostile input.
const maxZipEntryBytes int64 = 200 << 20

// extractZip extracts the archive at src into dst, creating dst. Entries
// attempting directory traversal (".." components or absolute names) are
// rejected. dst is left in an undefined state on error; callers remove it.
func extractZip(src, dst string) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	cleanDst := filepath.Clean(dst)
	for _, file := range reader.File {
		if err := extractEntry(file, cleanDst); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(file *zip.File, dst string) error {
	name := file.Name
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return fmt.Errorf("zip entry has absolute name: %s", name)
	}

	target := filepath.Join(dst, name)
	// Cleaned-prefix check catches ".." traversal after joining.
	if !strings.HasPrefix(filepath.Clean(target), dst+string(os.PathSeparator)) {
		return fmt.Errorf("zip entry escapes target directory: %s", name)
	}

	if file.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}

	if file.UncompressedSize64 > uint64(maxZipEntryBytes) {
		return fmt.Errorf("zip entry too large: %s", name)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	in, err := file.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", name, err)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}

	// The declared size is attacker-controlled; enforce the cap on actual
	// bytes as well.
	written, err := io.Copy(out, io.LimitReader(in, maxZipEntryBytes+1))
	if cerr := out.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if written > maxZipEntryBytes {
		return fmt.Errorf("zip entry too large: %s", name)
	}
	return nil
}
