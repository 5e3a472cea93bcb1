package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	imagepkg "github.com/youruser/polaroidwall/internal/image"
	"github.com/youruser/polaroidwall/internal/util"
)

var qrCmd = &cobra.Command{
	Use:   "qr <text>",
	Short: "Write a QR code PNG, e.g. for a wall's share link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, _ := cmd.Flags().GetInt("size")
		out, _ := cmd.Flags().GetString("out")

		png, err := imagepkg.GenerateQRPNG(args[0], size)
		if err != nil {
			return err
		}
		if err := util.EnsureDir(filepath.Dir(out)); err != nil {
			return err
		}
		if err := os.WriteFile(out, png, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("✓"), out)
		return nil
	},
}

func init() {
	qrCmd.Flags().Int("size", imagepkg.DefaultQRSize, "edge length in pixels")
	qrCmd.Flags().StringP("out", "o", "qr.png", "output file")
}
