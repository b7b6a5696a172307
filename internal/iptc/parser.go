package iptc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

const (
	tagMarker         = 0x1C
	applicationRecord = 0x02
	photoshopHeader   = "Photoshop 3.0\x00"
	resourceSignature = "8BIM"
	iptcResourceID    = 0x0404

	// scanLimit bounds the raw search for a record marker
	scanLimit = 8192
)

// ErrMalformed wraps every structural problem found while parsing
var ErrMalformed = errors.New("malformed IPTC data")

// ReadFile parses the IPTC block of the file at path
func ReadFile(path string, force bool) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, force)
}

// Parse extracts application record datasets. JPEG files are walked
// segment by segment to the Photoshop APP13 block; a well-formed JPEG
// without one has no metadata. With force, data that is not a JPEG, or a
// JPEG whose segments cannot be walked, is scanned for the first record
// marker within its first 8192 bytes, and a truncated trailing record ends
// parsing instead of failing it.
//
// A nil Metadata with a nil error means no IPTC block was found.
func Parse(data []byte, force bool) (Metadata, error) {
	block, err := findJPEGBlock(data)
	switch {
	case err != nil && !force:
		return nil, err
	case err != nil:
		block = scanForBlock(data)
	case block == nil && force && !isJPEG(data):
		block = scanForBlock(data)
	}
	if block == nil {
		return nil, nil
	}
	return parseRecords(block, force)
}

func isJPEG(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8
}

// findJPEGBlock returns the IPTC-NAA resource of the APP13 segment
func findJPEGBlock(data []byte) ([]byte, error) {
	if len(data) < 4 || !isJPEG(data) {
		return nil, nil
	}

	offset := 2
	for offset+4 <= len(data) {
		if data[offset] != 0xFF {
			return nil, fmt.Errorf("%w: invalid JPEG marker at offset %d", ErrMalformed, offset)
		}
		marker := data[offset+1]
		offset += 2

		// Fill bytes and standalone markers carry no length
		if marker == 0xFF || marker == 0x01 || (marker >= 0xD0 && marker <= 0xD8) {
			if marker == 0xFF {
				offset--
			}
			continue
		}
		if marker == 0xDA || marker == 0xD9 {
			break
		}

		segLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
		if segLen < 2 || offset+segLen > len(data) {
			return nil, fmt.Errorf("%w: segment 0x%02X overruns file", ErrMalformed, marker)
		}
		segData := data[offset+2 : offset+segLen]

		if marker == 0xED && bytes.HasPrefix(segData, []byte(photoshopHeader)) {
			block, err := findResource(segData[len(photoshopHeader):], iptcResourceID)
			if err != nil || block != nil {
				return block, err
			}
		}

		offset += segLen
	}
	return nil, nil
}

// findResource walks Photoshop image resource blocks. Running out of data
// before the resource is found is not an error.
func findResource(data []byte, id uint16) ([]byte, error) {
	p := 0
	for p+6 <= len(data) {
		if string(data[p:p+4]) != resourceSignature {
			return nil, nil
		}
		resourceID := binary.BigEndian.Uint16(data[p+4 : p+6])
		p += 6

		// Pascal name, padded to an even length including its length byte
		if p >= len(data) {
			break
		}
		nameLen := 1 + int(data[p])
		if nameLen%2 != 0 {
			nameLen++
		}
		p += nameLen
		if p+4 > len(data) {
			break
		}

		size := int(binary.BigEndian.Uint32(data[p : p+4]))
		p += 4
		if size < 0 || p+size > len(data) {
			return nil, fmt.Errorf("%w: resource 0x%04X overruns segment", ErrMalformed, resourceID)
		}
		if resourceID == id {
			return data[p : p+size], nil
		}
		p += size + size%2
	}
	return nil, nil
}

// scanForBlock looks for the first application record marker near the
// start of data
func scanForBlock(data []byte) []byte {
	limit := min(len(data), scanLimit)
	for i := 0; i < limit && i+5 <= len(data); i++ {
		if data[i] == tagMarker && data[i+1] == applicationRecord {
			return data[i:]
		}
	}
	return nil
}

func parseRecords(block []byte, lenient bool) (Metadata, error) {
	meta := Metadata{}
	pos := 0
	for pos < len(block) && block[pos] == tagMarker {
		if pos+5 > len(block) {
			if lenient {
				break
			}
			return nil, fmt.Errorf("%w: truncated record header at offset %d", ErrMalformed, pos)
		}
		record := block[pos+1]
		dataset := int(block[pos+2])
		length := int(binary.BigEndian.Uint16(block[pos+3 : pos+5]))
		pos += 5

		// Extended dataset: the low bits give the size of the length field
		if length&0x8000 != 0 {
			n := length & 0x7FFF
			if n > 4 || pos+n > len(block) {
				if lenient {
					break
				}
				return nil, fmt.Errorf("%w: bad extended length for dataset %d", ErrMalformed, dataset)
			}
			length = 0
			for _, b := range block[pos : pos+n] {
				length = length<<8 | int(b)
			}
			pos += n
		}

		if pos+length > len(block) {
			if lenient {
				break
			}
			return nil, fmt.Errorf("%w: dataset %d overruns block", ErrMalformed, dataset)
		}
		if record == applicationRecord {
			value := make([]byte, length)
			copy(value, block[pos:pos+length])
			meta[dataset] = append(meta[dataset], value)
		}
		pos += length
	}

	if len(meta) == 0 {
		return nil, nil
	}
	return meta, nil
}
