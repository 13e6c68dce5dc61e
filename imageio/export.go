package imageio

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"gocloud.dev/blob"

	"github.com/janelia-flyem/neuropil/npil"
	"github.com/janelia-flyem/neuropil/storage"
)

// DefaultExportDir is the directory used when no export directory is given.
const DefaultExportDir = "saved_labels_png"

// SliceName returns the file name for the i-th exported slice.
func SliceName(i int) string {
	return fmt.Sprintf("%04d.png", i)
}

// Sink receives encoded slice files.
type Sink interface {
	WriteFile(ctx context.Context, name string, data []byte) error
	Close() error
	String() string
}

type dirSink struct {
	dir string
}

// NewDirSink returns a sink that writes into a local directory, creating it and any
// parents if absent.
func NewDirSink(dir string) (Sink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("unable to create export directory %q: %w", dir, err)
	}
	return dirSink{dir}, nil
}

func (s dirSink) WriteFile(ctx context.Context, name string, data []byte) error {
	return os.WriteFile(filepath.Join(s.dir, name), data, 0644)
}

func (s dirSink) Close() error   { return nil }
func (s dirSink) String() string { return s.dir }

type bucketSink struct {
	ref    string
	bucket *blob.Bucket
}

func (s bucketSink) WriteFile(ctx context.Context, name string, data []byte) error {
	return s.bucket.WriteAll(ctx, name, data, &blob.WriterOptions{ContentType: "image/png"})
}

func (s bucketSink) Close() error   { return s.bucket.Close() }
func (s bucketSink) String() string { return s.ref }

// OpenSink returns a sink for the given reference.  References with a URL scheme, e.g.,
// "gs://bucket/labels" or "mem://", are written through a blob bucket while anything
// else is a local directory.
func OpenSink(ctx context.Context, ref string) (Sink, error) {
	if !storage.IsBucketRef(ref) {
		return NewDirSink(ref)
	}
	bucket, err := storage.OpenBucket(ctx, ref)
	if err != nil {
		return nil, err
	}
	return bucketSink{ref: ref, bucket: bucket}, nil
}

// NewBucketSink wraps an already opened bucket.
func NewBucketSink(ref string, bucket *blob.Bucket) Sink {
	return bucketSink{ref: ref, bucket: bucket}
}

// ExportSlicesTo encodes each slice along the first axis of a 2-d or 3-d volume as a
// 16-bit grayscale PNG named 0000.png, 0001.png, ... and writes it to the sink.  Values
// above 65535 are clamped.  Returns the number of slices written.
func ExportSlicesTo(ctx context.Context, vol *npil.Volume, sink Sink) (int, error) {
	if nd := vol.NumDims(); nd != 2 && nd != 3 {
		return 0, fmt.Errorf("can only export 2-d or 3-d volumes as image slices, not %d-d", nd)
	}
	timedLog := npil.NewTimeLog()
	var buf bytes.Buffer
	for z := 0; z < vol.NumSlices(); z++ {
		if err := ctx.Err(); err != nil {
			return z, err
		}
		slice, err := vol.Slice(z)
		if err != nil {
			return z, err
		}
		img, err := Gray16Image(slice)
		if err != nil {
			return z, err
		}
		buf.Reset()
		if err := png.Encode(&buf, img); err != nil {
			return z, fmt.Errorf("unable to encode slice %d: %w", z, err)
		}
		if err := sink.WriteFile(ctx, SliceName(z), buf.Bytes()); err != nil {
			return z, fmt.Errorf("unable to write slice %d to %s: %w", z, sink, err)
		}
	}
	timedLog.Debugf("Exported %d slices of %s to %s", vol.NumSlices(), vol, sink)
	return vol.NumSlices(), nil
}

// ExportSlices writes each slice of the volume as a 16-bit PNG into dir, creating dir
// if necessary, and returns the number of files written.
func ExportSlices(vol *npil.Volume, dir string) (int, error) {
	sink, err := NewDirSink(dir)
	if err != nil {
		return 0, err
	}
	return ExportSlicesTo(context.Background(), vol, sink)
}
