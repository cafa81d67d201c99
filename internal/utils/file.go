package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	imageExts = []string{"jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff", "webp"}
	sizeUnits = []string{"KB", "MB", "GB", "TB", "PB", "EB"}
)

// EnsureDir creates dir and its parents; an existing directory is fine
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// GetFileExtension returns the lower-case extension without the dot
func GetFileExtension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// IsImageFile reports whether a path looks like a decodable frame
func IsImageFile(filename string) bool {
	return slices.Contains(imageExts, GetFileExtension(filename))
}

// GenerateOutputFilename names the aligned counterpart of a frame:
// <outputDir>/<prefix><name><suffix>.<format>. An empty format keeps the
// frame's own extension, falling back to png.
func GenerateOutputFilename(frame, outputDir, prefix, suffix, format string) string {
	name := strings.TrimSuffix(filepath.Base(frame), filepath.Ext(frame))
	if format == "" {
		format = GetFileExtension(frame)
		if format == "" {
			format = "png"
		}
	}
	return filepath.Join(outputDir, prefix+name+suffix+"."+format)
}

// ListImageFiles recursively lists all image files in a directory in lexical order
func ListImageFiles(dir string) ([]string, error) {
	var frames []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsImageFile(path) {
			frames = append(frames, path)
		}
		return nil
	})
	slices.Sort(frames)
	return frames, err
}

// CollectImageFiles expands directories among args into their image files and
// keeps plain files in the order given. URLs are passed through.
func CollectImageFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			files = append(files, arg)
			continue
		}
		if DirExists(arg) {
			found, err := ListImageFiles(arg)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
			continue
		}
		if !FileExists(arg) {
			return nil, fmt.Errorf("input not found: %s", arg)
		}
		files = append(files, arg)
	}
	return files, nil
}

// FileExists reports whether path exists and is not a directory
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DirExists reports whether path is an existing directory
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// FormatFileSize renders a byte count with a binary unit, e.g. "2.0 KB"
func FormatFileSize(size int64) string {
	if size < 1024 {
		return fmt.Sprintf("%d B", size)
	}
	v := float64(size) / 1024
	i := 0
	for ; v >= 1024 && i < len(sizeUnits)-1; i++ {
		v /= 1024
	}
	return fmt.Sprintf("%.1f %s", v, sizeUnits[i])
}
