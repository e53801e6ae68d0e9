package loader

import (
	"bytes"
	"image"
	"image/draw"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Image decodes png/bmp/jpeg/webp bytes into RGBA pixels, the layout GPU
// upload paths want. With no arguments the default image extensions apply.
func Image(exts ...string) Loader[*image.RGBA] {
	if len(exts) == 0 {
		exts = ImageExtensions
	}
	return Loader[*image.RGBA]{Extensions: exts, Decode: decodeImage(exts)}
}

func decodeImage(exts []string) Func[*image.RGBA] {
	return func(data []byte, ext string) (*image.RGBA, error) {
		if !supports(exts, ext) {
			return nil, &DecodeError{Ext: ext, Unsupported: true}
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, &DecodeError{Ext: ext, Err: err}
		}
		if rgba, ok := img.(*image.RGBA); ok {
			return rgba, nil
		}
		rgba := image.NewRGBA(img.Bounds())
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
		return rgba, nil
	}
}
