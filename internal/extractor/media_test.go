package extractor_test

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"invoicelens/internal/domain"
	"invoicelens/internal/extractor"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	return img
}

func TestPrepareMedia_PassThrough(t *testing.T) {
	for _, ct := range []string{"application/pdf", "image/jpeg", "image/png"} {
		mime, data, err := extractor.PrepareMedia(ct, []byte("bytes"))
		require.NoError(t, err)
		assert.Equal(t, ct, mime)
		assert.Equal(t, []byte("bytes"), data)
	}
}

func TestPrepareMedia_ConvertsToPNG(t *testing.T) {
	var tiffBuf, bmpBuf bytes.Buffer
	require.NoError(t, tiff.Encode(&tiffBuf, testImage(), nil))
	require.NoError(t, bmp.Encode(&bmpBuf, testImage()))

	for ct, data := range map[string][]byte{"image/tiff": tiffBuf.Bytes(), "image/bmp": bmpBuf.Bytes()} {
		mime, out, err := extractor.PrepareMedia(ct, data)
		require.NoError(t, err, ct)
		assert.Equal(t, "image/png", mime)

		img, err := png.Decode(bytes.NewReader(out))
		require.NoError(t, err, ct)
		assert.Equal(t, 4, img.Bounds().Dx())
	}
}

func TestPrepareMedia_Errors(t *testing.T) {
	_, _, err := extractor.PrepareMedia("text/plain", []byte("x"))
	assert.ErrorContains(t, err, "unsupported content type")

	_, _, err = extractor.PrepareMedia("image/tiff", []byte("not a tiff"))
	assert.ErrorIs(t, err, domain.ErrInvalidDocument)
}

// bmpHeader returns the file and info headers of a 24-bit BMP that claims the given
// dimensions but carries no pixel data.
func bmpHeader(width, height int32) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString("BM")
	_ = binary.Write(buf, binary.LittleEndian, []uint32{54 + 64, 0, 54})
	_ = binary.Write(buf, binary.LittleEndian, uint32(40))
	_ = binary.Write(buf, binary.LittleEndian, []int32{width, height})
	_ = binary.Write(buf, binary.LittleEndian, []uint16{1, 24})
	_ = binary.Write(buf, binary.LittleEndian, []uint32{0, 0, 2835, 2835, 0, 0})
	buf.Write(make([]byte, 64))
	return buf.Bytes()
}

func TestCheckImageSize(t *testing.T) {
	var tiffBuf bytes.Buffer
	require.NoError(t, tiff.Encode(&tiffBuf, testImage(), nil))

	assert.NoError(t, extractor.CheckImageSize("image/tiff", tiffBuf.Bytes()))
	assert.NoError(t, extractor.CheckImageSize("image/bmp", bmpHeader(2480, 3508)))
	assert.NoError(t, extractor.CheckImageSize("image/png", []byte("not inspected")))

	err := extractor.CheckImageSize("image/bmp", bmpHeader(40000, 40000))
	assert.ErrorIs(t, err, domain.ErrInvalidDocument)
	assert.ErrorContains(t, err, "40000x40000")

	err = extractor.CheckImageSize("image/tiff", []byte("II*\x00garbage"))
	assert.ErrorIs(t, err, domain.ErrInvalidDocument)
}

func TestPrepareMedia_OversizedBMPIsNotDecoded(t *testing.T) {
	_, _, err := extractor.PrepareMedia("image/x-ms-bmp", bmpHeader(40000, 40000))
	assert.ErrorIs(t, err, domain.ErrInvalidDocument)
}
