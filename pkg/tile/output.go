package tile

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"
)

// EncodePNG encodes a raster as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// WriteImage writes img to filename in the given format, or to stdout when
// filename is empty.
func WriteImage(filename string, img *image.RGBA, format int) error {
	var output io.Writer = os.Stdout
	if filename != "" {
		file, err := os.Create(filename)
		if err != nil {
			return err
		}
		defer file.Close()
		output = file
	}

	switch format {
	case FormatPNG:
		return png.Encode(output, img)
	case FormatRaw:
		// Tightly packed RGBA rows, the layout texture uploads expect.
		w := img.Rect.Dx() * 4
		for y := 0; y < img.Rect.Dy(); y++ {
			off := y * img.Stride
			if _, err := output.Write(img.Pix[off : off+w]); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unknown output format %d", format)
}

// WorldFile returns world file contents for a raster spanning lon/lat
// degrees [minLon, minLon+spanLon] x [maxLat-spanLat, maxLat].
func WorldFile(width, height int, minLon, maxLat, spanLon, spanLat float64) []byte {
	px := spanLon / float64(width)
	py := spanLat / float64(height)

	var buf bytes.Buffer
	// pixel size x, rotation, rotation, pixel size y (negative), top left x, top left y
	fmt.Fprintf(&buf, "%24.10f\n", px)
	fmt.Fprintf(&buf, "%24.10f\n", 0.0)
	fmt.Fprintf(&buf, "%24.10f\n", 0.0)
	fmt.Fprintf(&buf, "%24.10f\n", -py)
	fmt.Fprintf(&buf, "%24.10f\n", minLon+px/2)
	fmt.Fprintf(&buf, "%24.10f\n", maxLat-py/2)
	return buf.Bytes()
}

// WorldFileName derives the world file path from an image path.
func WorldFileName(filename string, format int) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("can't write a worldfile when writing to stdout")
	}
	ext := ".pgw"
	if format == FormatRaw {
		ext = ".wld"
	}
	if idx := strings.LastIndex(filename, "."); idx > strings.LastIndex(filename, string(os.PathSeparator)) {
		return filename[:idx] + ext, nil
	}
	return filename + ext, nil
}
