package ics

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrFilenameRequired is returned by WriteFile when path is a directory and
// no file name was given.
var ErrFilenameRequired = errors.New("filename required when path is a directory")

var (
	unsafeFileChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	fileSpaces      = regexp.MustCompile(`\s+`)
)

// FileName derives a safe "<title>.ics" name from an event or meeting title.
func FileName(title string) string {
	safe := unsafeFileChars.ReplaceAllString(title, "-")
	safe = fileSpaces.ReplaceAllString(safe, "_")
	safe = strings.Trim(safe, "._-")
	if safe == "" {
		safe = "meeting"
	}
	return safe + ".ics"
}

// WriteFile stores finished calendar text and returns the final path.
//
// If filename is set, or path is an existing directory, the file is written
// as path/filename. Parent directories are created as needed and the content
// is written to a temp file and renamed into place.
func WriteFile(content, path, filename string) (string, error) {
	if path == "" {
		return "", errors.New("output path is empty")
	}

	target := path
	if info, err := os.Stat(path); filename != "" || (err == nil && info.IsDir()) {
		if filename == "" {
			return "", ErrFilenameRequired
		}
		target = filepath.Join(path, filename)
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, ".meetcal-*.ics.tmp")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmpName, target); err != nil {
		return "", err
	}
	return target, nil
}
