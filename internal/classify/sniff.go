package classify

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// MIME types reported by DetectMIME.
const (
	MIMEJPEG    = "image/jpeg"
	MIMEPNG     = "image/png"
	MIMEAPNG    = "image/apng"
	MIMEGIF     = "image/gif"
	MIMEWebP    = "image/webp"
	MIMEAVIF    = "image/avif"
	MIMEJXL     = "image/jxl"
	MIMEUnknown = "application/octet-stream"
)

// sniffLen bounds how much of a file the sniffer reads. PNG chunk headers
// (for APNG's acTL) always appear well within this window.
const sniffLen = 4096

var (
	pngSignature  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jxlContainer  = []byte{0x00, 0x00, 0x00, 0x0c, 'J', 'X', 'L', ' ', '\r', '\n', 0x87, '\n'}
	jxlCodestream = []byte{0xff, 0x0a}
)

// DetectMIME inspects the leading bytes of the file at path and returns its
// content type. Unrecognized content yields MIMEUnknown, not an error.
func DetectMIME(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for sniff: %w", err)
	}
	defer file.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read for sniff: %w", err)
	}
	return sniff(head[:n]), nil
}

func sniff(head []byte) string {
	switch {
	case len(head) >= 3 && head[0] == 0xff && head[1] == 0xd8 && head[2] == 0xff:
		return MIMEJPEG
	case bytes.HasPrefix(head, pngSignature):
		if pngIsAnimated(head) {
			return MIMEAPNG
		}
		return MIMEPNG
	case bytes.HasPrefix(head, []byte("GIF87a")) || bytes.HasPrefix(head, []byte("GIF89a")):
		return MIMEGIF
	case len(head) >= 12 && bytes.HasPrefix(head, []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WEBP")):
		return MIMEWebP
	case isAVIF(head):
		return MIMEAVIF
	case bytes.HasPrefix(head, jxlContainer) || bytes.HasPrefix(head, jxlCodestream):
		return MIMEJXL
	default:
		return MIMEUnknown
	}
}

// pngIsAnimated walks PNG chunk headers looking for an acTL chunk before the
// first IDAT, which is how APNG distinguishes itself from plain PNG.
func pngIsAnimated(head []byte) bool {
	offset := len(pngSignature)
	for offset+8 <= len(head) {
		length := binary.BigEndian.Uint32(head[offset : offset+4])
		chunkType := string(head[offset+4 : offset+8])
		switch chunkType {
		case "acTL":
			return true
		case "IDAT", "IEND":
			return false
		}
		// Chunk data plus the trailing CRC.
		offset += 8 + int(length) + 4
	}
	return false
}

func isAVIF(head []byte) bool {
	if len(head) < 12 || !bytes.Equal(head[4:8], []byte("ftyp")) {
		return false
	}
	brand := string(head[8:12])
	return brand == "avif" || brand == "avis"
}
