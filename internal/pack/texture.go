package pack

import (
	"bytes"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"unicode"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	itemTextureSize = 16
	packIconSize    = 64
)

// placeholderPNG renders a square tile whose colour is derived from seed and
// stamps the first letter of label in the middle. Same inputs, same bytes.
func placeholderPNG(size int, seed, label string) ([]byte, error) {
	bg := seedColor(seed)
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	border := color.RGBA{R: bg.R / 2, G: bg.G / 2, B: bg.B / 2, A: 0xff}
	for i := 0; i < size; i++ {
		img.SetRGBA(i, 0, border)
		img.SetRGBA(i, size-1, border)
		img.SetRGBA(0, i, border)
		img.SetRGBA(size-1, i, border)
	}

	if g := glyph(label); g != 0 {
		face := basicfont.Face7x13
		m := face.Metrics()
		h := (m.Ascent + m.Descent).Ceil()
		w := font.MeasureString(face, string(g)).Ceil()
		d := font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.White),
			Face: face,
			Dot:  fixed.P((size-w)/2, (size-h)/2+m.Ascent.Ceil()),
		}
		d.DrawString(string(g))
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func seedColor(seed string) color.RGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	v := h.Sum32()
	// Keep channels in the mid range so the white glyph stays readable.
	return color.RGBA{
		R: 0x30 + byte(v&0x7f),
		G: 0x30 + byte((v>>8)&0x7f),
		B: 0x30 + byte((v>>16)&0x7f),
		A: 0xff,
	}
}

// glyph picks the first printable ASCII letter or digit of label; basicfont
// only covers ASCII.
func glyph(label string) rune {
	for len(label) > 0 {
		r, n := utf8.DecodeRuneInString(label)
		label = label[n:]
		if r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToUpper(r)
		}
	}
	return 0
}
