package main

import (
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const MaxImageSize = 5 << 20 // 5MiB

var (
	ErrImageType     = errors.New("upload: only image files are allowed")
	ErrImageTooLarge = errors.New("upload: image exceeds the size limit")
)

var allowedImageMIMEs = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

var allowedImageExts = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
}

// validateUpload enforces the upload policy on declared metadata: extension and
// MIME type must both be in the image allow-list, and the declared size must
// not exceed MaxImageSize.
func validateUpload(header *multipart.FileHeader) error {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedImageExts[ext] {
		return ErrImageType
	}

	if !allowedImageMIMEs[header.Header.Get("Content-Type")] {
		return ErrImageType
	}

	if header.Size > MaxImageSize {
		return ErrImageTooLarge
	}

	return nil
}

// saveUpload validates the file and writes it under dir with a uuid-based name,
// returning the stored filename. A random uuid rather than a timestamp keeps
// concurrent uploads arriving in the same instant from colliding. The size cap
// is re-checked while copying; a file that overruns it is removed before the
// rejection is returned.
func saveUpload(dir string, header *multipart.FileHeader, src io.Reader) (string, error) {
	if err := validateUpload(header); err != nil {
		return "", err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}

	filename := id.String() + strings.ToLower(filepath.Ext(header.Filename))
	fpath := filepath.Join(dir, filename)

	f, err := createFile(fpath)
	if err != nil {
		return "", err
	}

	n, err := io.Copy(f, io.LimitReader(src, MaxImageSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		os.Remove(fpath)
		return "", err
	}

	if n > MaxImageSize {
		os.Remove(fpath)
		return "", ErrImageTooLarge
	}

	return filename, nil
}

func createFile(p string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(p), 0o770); err != nil {
		return nil, err
	}

	return os.Create(p)
}
