// Package imgmeta extracts pixel dimensions from image file headers.
// It probes a bounded prefix of the file and never decodes pixel data,
// so it stays cheap even for very large files.
package imgmeta

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// SniffLimit is the number of bytes read from the head of a file.
// Real-world GIF/PNG headers fit in a few dozen bytes; JPEG SOF markers
// show up well within this window even for EXIF-heavy files.
const SniffLimit = 50 * 1024

// Dimensions holds pixel width and height of an image.
type Dimensions struct {
	Width  int
	Height int
}

// AtLeast reports whether the image is at least w x h pixels.
func (d Dimensions) AtLeast(w, h int) bool {
	return d.Width >= w && d.Height >= h
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Sniff tries GIF, JPEG and PNG header probes in order and returns the
// dimensions of the first format that matches. The second return value is
// false when no format matched or the buffer is too short; this is not an
// error, callers decide what an unknown image means to them.
func Sniff(data []byte) (Dimensions, bool) {
	if dims, ok := sniffGIF(data); ok {
		return dims, true
	}
	if dims, ok := sniffJPEG(data); ok {
		return dims, true
	}
	if dims, ok := sniffPNG(data); ok {
		return dims, true
	}
	return Dimensions{}, false
}

// SniffFile reads up to SniffLimit bytes from path and sniffs them.
// The error is non-nil only for I/O failures; an unreadable header with a
// readable file is (Dimensions{}, false, nil).
func SniffFile(path string) (Dimensions, bool, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the candidate list
	if err != nil {
		return Dimensions{}, false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	buf := make([]byte, SniffLimit)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Dimensions{}, false, fmt.Errorf("read %s: %w", path, err)
	}
	dims, ok := Sniff(buf[:n])
	return dims, ok, nil
}

// sniffGIF matches GIF87a/GIF89a, logical screen size is two little-endian
// uint16 right after the 6-byte signature.
func sniffGIF(data []byte) (Dimensions, bool) {
	if len(data) < 10 {
		return Dimensions{}, false
	}
	sig := string(data[:6])
	if sig != "GIF87a" && sig != "GIF89a" {
		return Dimensions{}, false
	}
	w := int(binary.LittleEndian.Uint16(data[6:8]))
	h := int(binary.LittleEndian.Uint16(data[8:10]))
	return Dimensions{Width: w, Height: h}, true
}

// sniffJPEG walks the marker segments after the SOI until it finds a
// start-of-frame marker carrying the frame size. DHT (0xC4) and COM-like
// 0xCC are not frame markers despite being in the 0xC0-0xCF range. Hitting
// start-of-scan or the end of the buffer without a SOF means the size is
// unknown, not that the file is broken.
func sniffJPEG(data []byte) (Dimensions, bool) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return Dimensions{}, false
	}
	pos := 2
	for {
		// markers may be padded with extra 0xFF bytes
		for pos < len(data) && data[pos] == 0xFF {
			pos++
		}
		if pos >= len(data) {
			return Dimensions{}, false
		}
		marker := data[pos]
		pos++

		if marker == 0xDA { // start of scan, no SOF seen
			return Dimensions{}, false
		}

		if marker >= 0xC0 && marker <= 0xCF && marker != 0xC4 && marker != 0xCC {
			// SOF payload: length(2) precision(1) height(2) width(2)
			if pos+7 > len(data) {
				return Dimensions{}, false
			}
			h := int(binary.BigEndian.Uint16(data[pos+3 : pos+5]))
			w := int(binary.BigEndian.Uint16(data[pos+5 : pos+7]))
			return Dimensions{Width: w, Height: h}, true
		}

		if pos+2 > len(data) {
			return Dimensions{}, false
		}
		segLen := int(binary.BigEndian.Uint16(data[pos : pos+2]))
		if segLen < 2 {
			return Dimensions{}, false
		}
		pos += segLen
	}
}

// sniffPNG matches the PNG signature and reads width/height from the IHDR
// chunk, which the standard requires to come first at a fixed offset.
func sniffPNG(data []byte) (Dimensions, bool) {
	if len(data) < 24 {
		return Dimensions{}, false
	}
	if string(data[:5]) != "\x89PNG\r" {
		return Dimensions{}, false
	}
	if string(data[12:16]) != "IHDR" {
		return Dimensions{}, false
	}
	w := int(binary.BigEndian.Uint32(data[16:20]))
	h := int(binary.BigEndian.Uint32(data[20:24]))
	return Dimensions{Width: w, Height: h}, true
}
