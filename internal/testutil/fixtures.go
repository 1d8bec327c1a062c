package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// FITSCard is one header keyword written after the mandatory cards
type FITSCard struct {
	Key   string
	Value any // string, int, float64 or bool
}

// FITSImage describes a 16-bit unsigned FITS fixture
type FITSImage struct {
	Width, Height int
	Pix           []uint16 // row-major, nil means all zero
	Cards         []FITSCard
}

// WriteFITS writes img to path
func WriteFITS(t testing.TB, path string, img FITSImage) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, EncodeFITS(img), 0o600))
}

// EncodeFITS renders img as a single-HDU FITS file with BITPIX 16 and BZERO 32768
func EncodeFITS(img FITSImage) []byte {
	var hdr bytes.Buffer
	card := func(key string, value any) {
		var v string
		switch x := value.(type) {
		case string:
			v = fmt.Sprintf("'%-8s'", x)
			hdr.WriteString(pad80(fmt.Sprintf("%-8s= %s", key, v)))
			return
		case bool:
			v = "F"
			if x {
				v = "T"
			}
		case int:
			v = strconv.Itoa(x)
		case float64:
			v = strconv.FormatFloat(x, 'f', -1, 64)
			if !strings.Contains(v, ".") {
				v += ".0"
			}
		default:
			panic(fmt.Sprintf("unsupported FITS value %T", value))
		}
		hdr.WriteString(pad80(fmt.Sprintf("%-8s= %20s / fixture", key, v)))
	}

	card("SIMPLE", true)
	card("BITPIX", 16)
	card("NAXIS", 2)
	card("NAXIS1", img.Width)
	card("NAXIS2", img.Height)
	card("BZERO", 32768)
	card("BSCALE", 1)
	hdr.WriteString(pad80("COMMENT synthetic test frame"))
	for _, c := range img.Cards {
		card(c.Key, c.Value)
	}
	hdr.WriteString(pad80("END"))
	padBlock(&hdr, ' ')

	data := new(bytes.Buffer)
	n := img.Width * img.Height
	for i := range n {
		var v uint16
		if i < len(img.Pix) {
			v = img.Pix[i]
		}
		_ = binary.Write(data, binary.BigEndian, int16(int32(v)-32768))
	}
	padBlock(data, 0)

	return append(hdr.Bytes(), data.Bytes()...)
}

func pad80(s string) string {
	if len(s) > 80 {
		return s[:80]
	}
	return s + strings.Repeat(" ", 80-len(s))
}

func padBlock(b *bytes.Buffer, fill byte) {
	if rem := b.Len() % 2880; rem != 0 {
		b.Write(bytes.Repeat([]byte{fill}, 2880-rem))
	}
}

// RawTIFF describes an uncompressed 16-bit single-channel CFA TIFF carrying
// camera EXIF tags, like a raw file converted in document mode
type RawTIFF struct {
	Width, Height    int
	Pix              []uint16 // row-major, nil means all zero
	Model            string   // omitted when empty
	DateTime         string   // IFD0 DateTime, omitted when empty
	DateTimeOriginal string   // omitted when empty
	ISO              int      // omitted when zero
	ExposureTime     [2]uint32
	FNumber          [2]uint32
	FocalLength      [2]uint32
	CFAPattern       string // e.g. "RGGB", omitted when empty
}

// WriteRawTIFF writes r to path
func WriteRawTIFF(t testing.TB, path string, r RawTIFF) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, EncodeRawTIFF(r), 0o600))
}

const (
	tiffASCII     = 2
	tiffShort     = 3
	tiffLong      = 4
	tiffRational  = 5
	tiffUndefined = 7
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// EncodeRawTIFF renders r as a little-endian TIFF with an EXIF sub-IFD.
// Tags are written in ascending order.
func EncodeRawTIFF(r RawTIFF) []byte {
	le := binary.LittleEndian
	short := func(v uint16) []byte { return le.AppendUint16(nil, v) }
	long := func(v uint32) []byte { return le.AppendUint32(nil, v) }
	rational := func(v [2]uint32) []byte { return append(long(v[0]), long(v[1])...) }
	ascii := func(s string) ifdData { return ifdData{uint32(len(s) + 1), append([]byte(s), 0)} }

	pix := make([]byte, 0, 2*r.Width*r.Height)
	for i := range r.Width * r.Height {
		var v uint16
		if i < len(r.Pix) {
			v = r.Pix[i]
		}
		pix = le.AppendUint16(pix, v)
	}

	var ifd0 []ifdEntry
	add := func(list *[]ifdEntry, tag, typ uint16, count uint32, data []byte) {
		*list = append(*list, ifdEntry{tag: tag, typ: typ, count: count, data: data})
	}
	add(&ifd0, 256, tiffLong, 1, long(uint32(r.Width)))
	add(&ifd0, 257, tiffLong, 1, long(uint32(r.Height)))
	add(&ifd0, 258, tiffShort, 1, short(16))
	add(&ifd0, 259, tiffShort, 1, short(1))
	add(&ifd0, 262, tiffShort, 1, short(1))
	if r.Model != "" {
		a := ascii(r.Model)
		add(&ifd0, 272, tiffASCII, a.count, a.data)
	}
	stripIdx := len(ifd0)
	add(&ifd0, 273, tiffLong, 1, nil)
	add(&ifd0, 277, tiffShort, 1, short(1))
	add(&ifd0, 278, tiffLong, 1, long(uint32(r.Height)))
	add(&ifd0, 279, tiffLong, 1, long(uint32(len(pix))))
	if r.DateTime != "" {
		a := ascii(r.DateTime)
		add(&ifd0, 306, tiffASCII, a.count, a.data)
	}
	exifIdx := len(ifd0)
	add(&ifd0, 34665, tiffLong, 1, nil)

	var sub []ifdEntry
	if r.ExposureTime[1] != 0 {
		add(&sub, 33434, tiffRational, 1, rational(r.ExposureTime))
	}
	if r.FNumber[1] != 0 {
		add(&sub, 33437, tiffRational, 1, rational(r.FNumber))
	}
	if r.ISO > 0 {
		add(&sub, 34855, tiffShort, 1, short(uint16(r.ISO)))
	}
	if r.DateTimeOriginal != "" {
		a := ascii(r.DateTimeOriginal)
		add(&sub, 36867, tiffASCII, a.count, a.data)
	}
	if r.FocalLength[1] != 0 {
		add(&sub, 37386, tiffRational, 1, rational(r.FocalLength))
	}
	if r.CFAPattern != "" {
		cfaData := []byte{2, 0, 2, 0}
		for _, c := range r.CFAPattern {
			cfaData = append(cfaData, map[rune]byte{'R': 0, 'G': 1, 'B': 2}[c])
		}
		add(&sub, 41730, tiffUndefined, uint32(len(cfaData)), cfaData)
	}

	ifdSize := func(n int) int { return 2 + 12*n + 4 }
	exifOffset := 8 + ifdSize(len(ifd0))
	dataBase := exifOffset + ifdSize(len(sub))

	extra := append([]byte(nil), pix...)
	ifd0[stripIdx].data = long(uint32(dataBase))
	ifd0[exifIdx].data = long(uint32(exifOffset))

	var buf bytes.Buffer
	buf.WriteString("II")
	buf.Write(short(42))
	buf.Write(long(8))

	writeIFD := func(entries []ifdEntry) {
		buf.Write(short(uint16(len(entries))))
		for _, e := range entries {
			buf.Write(short(e.tag))
			buf.Write(short(e.typ))
			buf.Write(long(e.count))
			if len(e.data) <= 4 {
				v := make([]byte, 4)
				copy(v, e.data)
				buf.Write(v)
				continue
			}
			if len(extra)%2 == 1 {
				extra = append(extra, 0)
			}
			buf.Write(long(uint32(dataBase + len(extra))))
			extra = append(extra, e.data...)
		}
		buf.Write(long(0))
	}
	writeIFD(ifd0)
	writeIFD(sub)
	buf.Write(extra)

	return buf.Bytes()
}

type ifdData struct {
	count uint32
	data  []byte
}
