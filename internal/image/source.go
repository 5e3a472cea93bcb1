package imagepkg

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"net/http"
	"regexp"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var dataURIPrefix = regexp.MustCompile(`^data:(image/[\w.+-]+);base64,`)

// SourceBytes resolves an image reference to raw encoded bytes and a MIME
// type. A data URI is unwrapped; anything else is taken as the raw encoding.
func SourceBytes(source []byte) ([]byte, string, error) {
	if m := dataURIPrefix.FindSubmatchIndex(source); m != nil {
		mime := string(source[m[2]:m[3]])
		payload := source[m[1]:]
		raw := make([]byte, base64.StdEncoding.DecodedLen(len(payload)))
		n, err := base64.StdEncoding.Decode(raw, payload)
		if err != nil {
			return nil, "", fmt.Errorf("%w: data uri: %v", ErrDecode, err)
		}
		return raw[:n], mime, nil
	}
	return source, http.DetectContentType(source), nil
}

// DecodeSource decodes an image reference to pixels, applying EXIF orientation.
func DecodeSource(source []byte) (image.Image, error) {
	raw, _, err := SourceBytes(source)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return img, nil
}
