package wall

import "time"

// Photo is one instant photo pinned to a wall.
type Photo struct {
	ID        string    `json:"id"`
	Image     []byte    `json:"-"`
	MimeType  string    `json:"mime_type"`
	Caption   string    `json:"caption"`
	CreatedAt time.Time `json:"created_at"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Rotation  float64   `json:"rotation"`
}

// Captioned reports whether a caption has arrived.
func (p Photo) Captioned() bool {
	return p.Caption != ""
}
