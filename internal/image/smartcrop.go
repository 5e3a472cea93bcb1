package imagepkg

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"
)

// resizer adapts imaging to the smartcrop.Resizer interface.
type resizer struct {
	filter imaging.ResampleFilter
}

func (r resizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), r.filter)
}

// smartRegion picks the most interesting region of src with the w:h aspect.
func smartRegion(src image.Image, w, h int) (image.Rectangle, error) {
	analyzer := smartcrop.NewAnalyzer(resizer{filter: imaging.Linear})
	crop, err := analyzer.FindBestCrop(src, w, h)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("finding best crop: %w", err)
	}
	crop = crop.Intersect(src.Bounds())
	if crop.Empty() {
		return image.Rectangle{}, fmt.Errorf("finding best crop: empty region")
	}
	return crop, nil
}
