package imageio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/janelia-flyem/neuropil/npil"
)

// TIFF tags read directly for wide integer pages.
const (
	tagImageWidth      uint16 = 256
	tagImageLength     uint16 = 257
	tagBitsPerSample   uint16 = 258
	tagCompression     uint16 = 259
	tagStripOffsets    uint16 = 273
	tagSamplesPerPixel uint16 = 277
	tagRowsPerStrip    uint16 = 278
	tagStripByteCounts uint16 = 279
	tagPredictor       uint16 = 317
	tagTileWidth       uint16 = 322
	tagSampleFormat    uint16 = 339
)

const (
	compressionNone        = 1
	compressionDeflate     = 8
	compressionDeflateOld  = 32946
	predictorNone          = 1
	predictorHorizontal    = 2
	sampleFormatUnsigned   = 1
	sampleFormatSigned     = 2
	maxDirectoryEntryCount = 4096
)

// fieldSize gives the byte width of the TIFF field types that can hold integer tags.
var fieldSize = map[uint16]int{
	1:  1, // BYTE
	3:  2, // SHORT
	4:  4, // LONG
	16: 8, // LONG8
}

// ifdTags maps tag IDs to integer values for one image file directory.
type ifdTags map[uint16][]uint64

func (tags ifdTags) value(tag uint16, dflt uint64) uint64 {
	if v, found := tags[tag]; found && len(v) > 0 {
		return v[0]
	}
	return dflt
}

// readIFD reads the integer-valued tags of the directory at offset.  Tags of other
// field types are skipped.
func readIFD(r io.ReaderAt, endian binary.ByteOrder, offset int64) (ifdTags, error) {
	var buf [12]byte
	if _, err := r.ReadAt(buf[:2], offset); err != nil {
		return nil, &FormatError{msg: fmt.Sprintf("unable to read IFD at offset %d: %v", offset, err)}
	}
	numEntries := int(endian.Uint16(buf[:2]))
	if numEntries > maxDirectoryEntryCount {
		return nil, &FormatError{msg: fmt.Sprintf("IFD at offset %d has %d entries", offset, numEntries)}
	}
	tags := make(ifdTags, numEntries)
	for i := 0; i < numEntries; i++ {
		if _, err := r.ReadAt(buf[:], offset+2+12*int64(i)); err != nil {
			return nil, &FormatError{msg: fmt.Sprintf("truncated IFD at offset %d", offset)}
		}
		tag := endian.Uint16(buf[0:2])
		size, found := fieldSize[endian.Uint16(buf[2:4])]
		if !found {
			continue
		}
		count := int(endian.Uint32(buf[4:8]))
		raw := buf[8:12]
		if count*size > 4 {
			raw = make([]byte, count*size)
			if _, err := r.ReadAt(raw, int64(endian.Uint32(buf[8:12]))); err != nil {
				return nil, &FormatError{msg: fmt.Sprintf("unable to read values of tag %d: %v", tag, err)}
			}
		}
		values := make([]uint64, count)
		for j := range values {
			p := raw[j*size:]
			switch size {
			case 1:
				values[j] = uint64(p[0])
			case 2:
				values[j] = uint64(endian.Uint16(p))
			case 4:
				values[j] = uint64(endian.Uint32(p))
			case 8:
				values[j] = endian.Uint64(p)
			}
		}
		tags[tag] = values
	}
	return tags, nil
}

// wideIntegerPage returns true if the page holds 32-bit or 64-bit samples, which the
// standard TIFF decoder does not support.
func (tags ifdTags) wideIntegerPage() bool {
	bits := tags.value(tagBitsPerSample, 1)
	return bits == 32 || bits == 64
}

// decodeStripPage reads a single-channel 32-bit or 64-bit integer page stored in strips,
// either uncompressed or Deflate compressed, optionally with horizontal differencing.
func decodeStripPage(r io.ReaderAt, endian binary.ByteOrder, tags ifdTags) (*npil.Volume, error) {
	width := int(tags.value(tagImageWidth, 0))
	height := int(tags.value(tagImageLength, 0))
	if width <= 0 || height <= 0 {
		return nil, &FormatError{msg: fmt.Sprintf("bad page dimensions %d x %d", width, height)}
	}
	bits := tags.value(tagBitsPerSample, 1)
	if spp := tags.value(tagSamplesPerPixel, 1); spp != 1 {
		return nil, &FormatError{msg: fmt.Sprintf("%d-bit pages must have one sample per pixel, not %d", bits, spp)}
	}
	sampleFormat := tags.value(tagSampleFormat, sampleFormatUnsigned)
	if sampleFormat != sampleFormatUnsigned && sampleFormat != sampleFormatSigned {
		return nil, &FormatError{msg: fmt.Sprintf("unsupported sample format %d for label data", sampleFormat)}
	}
	if _, tiled := tags[tagTileWidth]; tiled {
		return nil, &FormatError{msg: fmt.Sprintf("tiled %d-bit pages are not supported", bits)}
	}
	compression := tags.value(tagCompression, compressionNone)
	predictor := tags.value(tagPredictor, predictorNone)
	if predictor != predictorNone && predictor != predictorHorizontal {
		return nil, &FormatError{msg: fmt.Sprintf("unsupported predictor %d", predictor)}
	}
	offsets, counts := tags[tagStripOffsets], tags[tagStripByteCounts]
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return nil, &FormatError{msg: "missing or inconsistent strip offsets and byte counts"}
	}

	bytesPerSample := int(bits / 8)
	need := width * height * bytesPerSample
	pix := make([]byte, 0, need)
	for i, offset := range offsets {
		strip := make([]byte, counts[i])
		if _, err := r.ReadAt(strip, int64(offset)); err != nil {
			return nil, &FormatError{msg: fmt.Sprintf("unable to read strip %d: %v", i, err)}
		}
		switch compression {
		case compressionNone:
		case compressionDeflate, compressionDeflateOld:
			zr, err := zlib.NewReader(bytes.NewReader(strip))
			if err != nil {
				return nil, &FormatError{msg: fmt.Sprintf("bad Deflate strip %d: %v", i, err)}
			}
			strip, err = io.ReadAll(zr)
			zr.Close()
			if err != nil {
				return nil, &FormatError{msg: fmt.Sprintf("bad Deflate strip %d: %v", i, err)}
			}
		default:
			return nil, &FormatError{msg: fmt.Sprintf("unsupported compression %d for %d-bit pages", compression, bits)}
		}
		pix = append(pix, strip...)
	}
	if len(pix) < need {
		return nil, &FormatError{msg: fmt.Sprintf("page has %d bytes of pixel data, need %d", len(pix), need)}
	}

	dtype := npil.T_uint32
	if bits == 64 {
		dtype = npil.T_uint64
	}
	data := make([]uint64, width*height)
	for i := range data {
		p := pix[i*bytesPerSample:]
		var v uint64
		if bits == 32 {
			v = uint64(endian.Uint32(p))
		} else {
			v = endian.Uint64(p)
		}
		if predictor == predictorHorizontal && i%width != 0 {
			v += data[i-1]
			if bits == 32 {
				v &= 0xffffffff
			}
		}
		data[i] = v
	}
	if sampleFormat == sampleFormatSigned {
		signBit := uint64(1) << (bits - 1)
		for i, v := range data {
			if v&signBit != 0 {
				return nil, &FormatError{msg: fmt.Sprintf("negative label at pixel %d", i)}
			}
		}
	}
	return npil.NewVolumeFromData(dtype, data, height, width)
}
