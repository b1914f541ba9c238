// Package packager turns a resource directory into a distributable archive
// and pushes archives to object storage.
package packager

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/blocksmith-dev/blocksmith/internal/errors"
	"github.com/blocksmith-dev/blocksmith/internal/models"
)

// skippedDirs are never packaged; they are build artifacts or tooling state,
// not resource content.
var skippedDirs = map[string]struct{}{
	"node_modules": {},
	"dist":         {},
	"build":        {},
	".blocksmith":  {},
}

// ArchiveName returns the canonical archive file name for a resource.
func ArchiveName(res *models.Resource) string {
	version := res.Version
	if version == "" {
		version = "0.0.0"
	}
	return fmt.Sprintf("%s-%s-%s.zip", res.Kind, res.Name, version)
}

// Archive packages a resource directory into destDir and returns the archive
// path. Hidden files, build output and node_modules are excluded.
func Archive(res *models.Resource, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageFailure, "failed to create archive directory")
	}

	target := filepath.Join(destDir, ArchiveName(res))
	out, err := os.Create(target)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageFailure, "failed to create archive")
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	err = filepath.WalkDir(res.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path == res.Path {
				return nil
			}
			if _, skip := skippedDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		rel, err := filepath.Rel(res.Path, path)
		if err != nil {
			return err
		}
		return addFile(zw, path, filepath.ToSlash(rel))
	})
	if err != nil {
		zw.Close()
		os.Remove(target)
		return "", errors.Wrap(err, errors.ErrCodeStorageFailure,
			fmt.Sprintf("failed to package %s %q", res.Kind, res.Name))
	}
	if err := zw.Close(); err != nil {
		os.Remove(target)
		return "", errors.Wrap(err, errors.ErrCodeStorageFailure, "failed to finalize archive")
	}
	return target, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
