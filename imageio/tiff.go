package imageio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"golang.org/x/image/tiff"

	"github.com/janelia-flyem/neuropil/npil"
)

const (
	littleEndianMarker uint16 = 0x4949
	bigEndianMarker    uint16 = 0x4d4d

	versionMarker uint16 = 0x2a
	bigTiffMarker uint16 = 0x2b

	// guards against cyclic IFD chains in damaged files
	maxTIFFPages = 1 << 16
)

// FormatError reports a malformed TIFF file.
type FormatError struct {
	msg string
}

func (e *FormatError) Error() string { return e.msg }

// tiffPageOffsets walks the chain of image file directories and returns the offset
// of each page's IFD along with the header bytes.
func tiffPageOffsets(r io.ReaderAt, size int64) (offsets []int64, header [8]byte, err error) {
	if _, err = r.ReadAt(header[:], 0); err != nil {
		return nil, header, &FormatError{msg: fmt.Sprintf("unable to read TIFF header: %v", err)}
	}
	var endian binary.ByteOrder
	switch binary.LittleEndian.Uint16(header[0:2]) {
	case littleEndianMarker:
		endian = binary.LittleEndian
	case bigEndianMarker:
		endian = binary.BigEndian
	default:
		return nil, header, &FormatError{msg: "invalid endian specified"}
	}
	switch version := endian.Uint16(header[2:4]); version {
	case versionMarker:
	case bigTiffMarker:
		return nil, header, &FormatError{msg: "BigTIFF files are not supported"}
	default:
		return nil, header, &FormatError{msg: fmt.Sprintf("unsupported tiff version: %X", version)}
	}

	offset := int64(endian.Uint32(header[4:8]))
	visited := make(map[int64]bool)
	buf := make([]byte, 4)
	for offset != 0 {
		if visited[offset] || len(offsets) >= maxTIFFPages {
			return nil, header, &FormatError{msg: fmt.Sprintf("cyclic IFD chain at offset %d", offset)}
		}
		if offset+2 > size {
			return nil, header, &FormatError{msg: fmt.Sprintf("IFD offset %d beyond end of file", offset)}
		}
		visited[offset] = true
		offsets = append(offsets, offset)

		if _, err = r.ReadAt(buf[:2], offset); err != nil {
			return nil, header, err
		}
		numTags := int64(endian.Uint16(buf[:2]))
		if _, err = r.ReadAt(buf, offset+2+12*numTags); err != nil {
			return nil, header, &FormatError{msg: fmt.Sprintf("truncated IFD at offset %d", offset)}
		}
		offset = int64(endian.Uint32(buf))
	}
	if len(offsets) == 0 {
		return nil, header, &FormatError{msg: "TIFF file has no images"}
	}
	return offsets, header, nil
}

// pageReader presents a TIFF file whose header points at a chosen IFD, so a decoder
// that only reads the first image will decode that page.
type pageReader struct {
	r      io.ReaderAt
	header [8]byte
}

func (p pageReader) ReadAt(b []byte, off int64) (int, error) {
	n, err := p.r.ReadAt(b, off)
	for i := int64(4); i < 8; i++ {
		if pos := i - off; pos >= 0 && pos < int64(n) {
			b[pos] = p.header[i]
		}
	}
	return n, err
}

// DecodeTIFF reads every page of a TIFF and stacks them along the first axis.  A file
// with a single page gives a 2-d volume of shape (height, width) and a file with N pages
// gives shape (N, height, width).  All pages must have the same dimensions.  Pages of
// 32-bit or 64-bit integers are read from their strips directly and give uint32 or
// uint64 volumes.
func DecodeTIFF(r io.ReaderAt, size int64) (*npil.Volume, error) {
	offsets, header, err := tiffPageOffsets(r, size)
	if err != nil {
		return nil, err
	}
	endian := binary.ByteOrder(binary.LittleEndian)
	if binary.LittleEndian.Uint16(header[0:2]) == bigEndianMarker {
		endian = binary.BigEndian
	}
	pages := make([]*npil.Volume, len(offsets))
	for i, offset := range offsets {
		tags, err := readIFD(r, endian, offset)
		if err != nil {
			return nil, err
		}
		if tags.wideIntegerPage() {
			if pages[i], err = decodeStripPage(r, endian, tags); err != nil {
				return nil, fmt.Errorf("unable to decode TIFF page %d: %w", i, err)
			}
		} else {
			page := pageReader{r: r, header: header}
			endian.PutUint32(page.header[4:8], uint32(offset))
			img, err := tiff.Decode(io.NewSectionReader(page, 0, size))
			if err != nil {
				return nil, fmt.Errorf("unable to decode TIFF page %d: %w", i, err)
			}
			if pages[i], err = VolumeFromImage(img); err != nil {
				return nil, err
			}
		}
		if i > 0 && !pages[i].SameShape(pages[0]) {
			return nil, fmt.Errorf("TIFF page %d has shape %v, expected %v", i, pages[i].Shape(), pages[0].Shape())
		}
	}
	if len(pages) == 1 {
		return pages[0], nil
	}
	return npil.Stack(pages)
}

// LoadTIFF reads a single or multi-page TIFF file into a volume.
func LoadTIFF(filename string) (*npil.Volume, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("unable to open TIFF %q: %w", filename, err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	timedLog := npil.NewTimeLog()
	vol, err := DecodeTIFF(f, fi.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	timedLog.Debugf("Loaded %s from TIFF %q", vol, filename)
	return vol, nil
}
