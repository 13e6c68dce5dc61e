/*
	Package imageio reads label and intensity volumes from image files and writes label
	volumes as stacks of 16-bit PNG slices.
*/
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/janelia-flyem/neuropil/npil"
)

// ImageFromFile decodes the first image in a file using any registered format.
func ImageFromFile(filename string) (img image.Image, format string, err error) {
	var file *os.File
	file, err = os.Open(filename)
	if err != nil {
		return nil, "", fmt.Errorf("unable to open image %q: %w", filename, err)
	}
	defer file.Close()
	img, format, err = image.Decode(file)
	if err != nil {
		return nil, "", fmt.Errorf("unable to decode image %q: %w", filename, err)
	}
	return
}

// VolumeFromImage converts an image into a 2-d volume of shape (height, width).  Gray
// images keep their intensities as uint8 or uint16.  Any other image is treated as a
// color-coded label image and each pixel becomes the 24-bit label R<<16 | G<<8 | B.
func VolumeFromImage(img image.Image) (*npil.Volume, error) {
	bounds := img.Bounds()
	nx, ny := bounds.Dx(), bounds.Dy()
	data := make([]uint64, nx*ny)
	var dtype npil.DataType
	switch src := img.(type) {
	case *image.Gray:
		dtype = npil.T_uint8
		for y := 0; y < ny; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+nx]
			for x, v := range row {
				data[y*nx+x] = uint64(v)
			}
		}
	case *image.Gray16:
		dtype = npil.T_uint16
		for y := 0; y < ny; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+2*nx]
			for x := 0; x < nx; x++ {
				data[y*nx+x] = uint64(row[2*x])<<8 | uint64(row[2*x+1])
			}
		}
	default:
		dtype = npil.T_uint32
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
				data[y*nx+x] = uint64(c.R)<<16 | uint64(c.G)<<8 | uint64(c.B)
			}
		}
	}
	return npil.NewVolumeFromData(dtype, data, ny, nx)
}

// Gray16Image returns a 16-bit grayscale image of a 1-d or 2-d volume.  Values above
// 65535 are clamped.  A 1-d volume becomes a single row.
func Gray16Image(vol *npil.Volume) (*image.Gray16, error) {
	var nx, ny int
	shape := vol.Shape()
	switch len(shape) {
	case 1:
		nx, ny = shape[0], 1
	case 2:
		nx, ny = shape[1], shape[0]
	default:
		return nil, fmt.Errorf("can only make an image from a 1-d or 2-d volume, not %d-d", len(shape))
	}
	img := image.NewGray16(image.Rect(0, 0, nx, ny))
	for i, value := range vol.Data() {
		if value > math.MaxUint16 {
			value = math.MaxUint16
		}
		x, y := i%nx, i/nx
		img.Pix[y*img.Stride+2*x] = uint8(value >> 8)
		img.Pix[y*img.Stride+2*x+1] = uint8(value)
	}
	return img, nil
}

// EncodeSlicePNG returns the PNG encoding of slice z of a 2-d or 3-d volume.
func EncodeSlicePNG(vol *npil.Volume, z int) ([]byte, error) {
	slice, err := vol.Slice(z)
	if err != nil {
		return nil, err
	}
	img, err := Gray16Image(slice)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
