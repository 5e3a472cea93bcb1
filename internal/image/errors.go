package imagepkg

import "errors"

var (
	// ErrDecode means the source bytes are not a decodable image. Compose
	// answers it by exporting the source unchanged.
	ErrDecode = errors.New("source image cannot be decoded")
	// ErrFontUnavailable means the caption font was not ready in time or could
	// not be parsed. A fallback face is used instead.
	ErrFontUnavailable = errors.New("caption font unavailable")
	// ErrSerialization means the finished card could not be encoded.
	ErrSerialization = errors.New("card cannot be encoded")
	// ErrRender covers failures while drawing after a successful decode.
	ErrRender = errors.New("card rendering failed")
)
