// Package iptctest builds IPTC blocks and JPEG files carrying them for tests.
package iptctest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
)

// Record is one application record dataset
type Record struct {
	Dataset int
	Value   string
}

// Records encodes datasets as a raw IPTC block
func Records(records ...Record) []byte {
	var buf bytes.Buffer
	for _, r := range records {
		buf.Write([]byte{0x1C, 0x02, byte(r.Dataset)})
		binary.Write(&buf, binary.BigEndian, uint16(len(r.Value)))
		buf.WriteString(r.Value)
	}
	return buf.Bytes()
}

// APP13 wraps an IPTC block in a Photoshop APP13 segment, marker included
func APP13(block []byte) []byte {
	var res bytes.Buffer
	res.WriteString("Photoshop 3.0\x00")
	res.WriteString("8BIM")
	binary.Write(&res, binary.BigEndian, uint16(0x0404))
	res.Write([]byte{0x00, 0x00}) // empty name, padded
	binary.Write(&res, binary.BigEndian, uint32(len(block)))
	res.Write(block)
	if len(block)%2 != 0 {
		res.WriteByte(0x00)
	}

	var seg bytes.Buffer
	seg.Write([]byte{0xFF, 0xED})
	binary.Write(&seg, binary.BigEndian, uint16(res.Len()+2))
	seg.Write(res.Bytes())
	return seg.Bytes()
}

// JPEG returns a small solid JPEG
func JPEG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{200, 120, 40, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Embed inserts an APP13 segment holding records right after the SOI marker
func Embed(jpegData []byte, records ...Record) []byte {
	out := make([]byte, 0, len(jpegData)+256)
	out = append(out, jpegData[:2]...)
	out = append(out, APP13(Records(records...))...)
	return append(out, jpegData[2:]...)
}
