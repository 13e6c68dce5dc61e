package imageio

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/janelia-flyem/neuropil/npil"
)

// ImageExtensions are the file extensions recognized when loading a directory of images.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".tiff", ".tif", ".bmp"}

func isImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func isTIFF(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".tif" || ext == ".tiff"
}

// Stack is a volume assembled from a directory of 2-d images, one slice per file.
type Stack struct {
	Volume *npil.Volume

	// Names holds the file name without extension for each slice.
	Names []string
}

// LoadDirectory reads every image file in a directory, in lexicographic order of file
// name, and stacks them into a volume of shape (N, height, width).  Files are decoded
// concurrently.  All images must have the same dimensions.
func LoadDirectory(dir string) (*Stack, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("image directory %q: %w", dir, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && isImageFile(entry.Name()) {
			files = append(files, entry.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no image files found in %q", dir)
	}

	timedLog := npil.NewTimeLog()
	slices := make([]*npil.Volume, len(files))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range files {
		i, name := i, name
		g.Go(func() error {
			img, _, err := ImageFromFile(filepath.Join(dir, name))
			if err != nil {
				return err
			}
			slices[i], err = VolumeFromImage(img)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stack := &Stack{Names: make([]string, len(files))}
	for i, name := range files {
		stack.Names[i] = strings.TrimSuffix(name, filepath.Ext(name))
		if !slices[i].SameShape(slices[0]) {
			return nil, fmt.Errorf("image %q has shape %v, but %q has shape %v",
				name, slices[i].Shape(), files[0], slices[0].Shape())
		}
	}
	if stack.Volume, err = npil.Stack(slices); err != nil {
		return nil, err
	}
	timedLog.Infof("Loaded %d images from %q into %s", len(files), dir, stack.Volume)
	return stack, nil
}

// Load reads a volume from a directory of images, a TIFF file (single or multi-page),
// or any other single image file.
func Load(path string) (*npil.Volume, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		stack, err := LoadDirectory(path)
		if err != nil {
			return nil, err
		}
		return stack.Volume, nil
	}
	if isTIFF(path) {
		return LoadTIFF(path)
	}
	img, _, err := ImageFromFile(path)
	if err != nil {
		return nil, err
	}
	return VolumeFromImage(img)
}
