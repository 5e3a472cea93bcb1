package imagepkg

import (
	"context"
	"fmt"

	"github.com/youruser/polaroidwall/internal/util"
)

// DownloadSource fetches the encoded bytes at url. The body is not decoded:
// an undecodable download is a source like any other and falls back in
// Compose.
func DownloadSource(ctx context.Context, url string) ([]byte, error) {
	body, err := util.GetBytes(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("downloading image: %w", err)
	}
	return body, nil
}
