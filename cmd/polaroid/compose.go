package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/youruser/polaroidwall/internal/api"
	"github.com/youruser/polaroidwall/internal/app"
	imagepkg "github.com/youruser/polaroidwall/internal/image"
	"github.com/youruser/polaroidwall/internal/util"
)

var composeCmd = &cobra.Command{
	Use:   "compose <image> [image...]",
	Short: "Render photos as cards",
	Long: `Compose renders each image, a file path or an http(s) URL, as an
instant-photo card and writes it to the output directory as polaroid-<ms>.jpg.

Images that cannot be decoded are written unchanged.

Examples:
  polaroid compose beach.jpg --caption "Golden hour glow"
  polaroid compose --auto-caption --out cards/ *.jpg
  polaroid compose https://example.com/photo.png --date 2024-03-15T10:00:00Z`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompose,
}

func init() {
	composeCmd.Flags().StringP("caption", "c", "", "caption written under the photo")
	composeCmd.Flags().Bool("auto-caption", false, "ask the caption provider when --caption is empty")
	composeCmd.Flags().StringP("out", "o", ".", "output directory")
	composeCmd.Flags().String("date", "", "capture time in RFC 3339 (default: file modification time, or now)")
}

func runCompose(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	components, err := app.Build(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}

	text, _ := cmd.Flags().GetString("caption")
	auto, _ := cmd.Flags().GetBool("auto-caption")
	outDir, _ := cmd.Flags().GetString("out")
	dateFlag, _ := cmd.Flags().GetString("date")
	if err := util.EnsureDir(outDir); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, arg := range args {
		path, err := composeOne(cmd, components, arg, text, auto, dateFlag, outDir)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s %s: %v\n", color.RedString("✗"), arg, err)
			continue
		}
		fmt.Fprintf(out, "%s %s -> %s\n", color.GreenString("✓"), arg, path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(args))
	}
	return nil
}

func composeOne(cmd *cobra.Command, c *app.Components, arg, text string, auto bool, dateFlag, outDir string) (string, error) {
	ctx := cmd.Context()
	source, modTime, err := readSource(cmd, arg)
	if err != nil {
		return "", err
	}

	createdAt := modTime
	if dateFlag != "" {
		createdAt, err = time.Parse(time.RFC3339, dateFlag)
		if err != nil {
			return "", fmt.Errorf("--date: %w", err)
		}
	}

	if text == "" && auto {
		raw, mime, err := imagepkg.SourceBytes(source)
		if err != nil {
			return "", err
		}
		res, err := c.Captions.Caption(ctx, raw, mime)
		if err != nil {
			return "", err
		}
		text = res.Text
		fmt.Fprintf(cmd.OutOrStdout(), "  caption: %s\n", color.CyanString(text))
	}

	card, err := c.Compositor.Compose(ctx, source, text, createdAt)
	if err != nil {
		return "", err
	}
	path := filepath.Join(outDir, api.ExportFilename(createdAt, http.DetectContentType(card)))
	if err := os.WriteFile(path, card, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// readSource loads a local file or downloads a URL. Local files are dated by
// their modification time.
func readSource(cmd *cobra.Command, arg string) ([]byte, time.Time, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		b, err := imagepkg.DownloadSource(cmd.Context(), arg)
		return b, time.Now(), err
	}
	info, err := os.Stat(arg)
	if err != nil {
		return nil, time.Time{}, err
	}
	b, err := os.ReadFile(arg)
	return b, info.ModTime(), err
}
