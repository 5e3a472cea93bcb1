package wall

import (
	"strings"
	"time"
)

type FilterOptions struct {
	FreeWords     string
	CaptionedOnly bool
	Since         time.Time
	Until         time.Time
}

// Filter returns the photos matching every set option, keeping their order.
// FreeWords must all appear in the caption, case-insensitively.
func Filter(photos []Photo, opt FilterOptions) []Photo {
	kw := strings.Fields(strings.ToLower(opt.FreeWords))
	out := []Photo{}
	for _, p := range photos {
		if opt.CaptionedOnly && !p.Captioned() {
			continue
		}
		if !opt.Since.IsZero() && p.CreatedAt.Before(opt.Since) {
			continue
		}
		if !opt.Until.IsZero() && !p.CreatedAt.Before(opt.Until) {
			continue
		}
		if len(kw) > 0 {
			caption := strings.ToLower(p.Caption)
			ok := true
			for _, k := range kw {
				if !strings.Contains(caption, k) {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}
