package encoder

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"mediaforge/logger"
	"mediaforge/models"
)

var imageQuality = map[models.Quality]int{
	models.QualityHigh:   95,
	models.QualityMedium: 75,
	models.QualityLow:    50,
}

func qualityValue(q models.Quality) int {
	if v, ok := imageQuality[q]; ok {
		return v
	}
	return imageQuality[models.QualityMedium]
}

// ImageBackend decodes and re-encodes images in process. SVG sources are
// rasterized by ImageMagick first.
type ImageBackend struct {
	Magick string
}

func NewImageBackend() *ImageBackend {
	return &ImageBackend{Magick: "magick"}
}

func (b *ImageBackend) Transcode(ctx context.Context, input, output string, opts Options) error {
	var (
		img image.Image
		err error
	)
	if strings.EqualFold(filepath.Ext(input), ".svg") {
		img, err = b.rasterize(ctx, input, output)
	} else {
		img, err = imaging.Open(input, imaging.AutoOrientation(true))
	}
	if err != nil {
		return err
	}

	img = resize(img, opts.Width, opts.Height)
	if err := encodeImage(img, output, opts); err != nil {
		os.Remove(output)
		return err
	}
	logger.Debugf("image %s encoded as %s (%dx%d)", filepath.Base(input), opts.Format, img.Bounds().Dx(), img.Bounds().Dy())
	return nil
}

// rasterize renders an SVG to a temporary PNG beside output and decodes it.
func (b *ImageBackend) rasterize(ctx context.Context, input, output string) (image.Image, error) {
	tmp := output + ".raster.png"
	defer os.Remove(tmp)

	args := []string{
		"-background", "none",
		input,
		fmt.Sprintf("png:%s", tmp),
	}
	if err := runTool(ctx, b.Magick, args...); err != nil {
		return nil, err
	}
	return imaging.Open(tmp)
}

// resize keeps the aspect ratio when only one side is given.
func resize(img image.Image, width, height int) image.Image {
	if width <= 0 && height <= 0 {
		return img
	}
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

func encodeImage(img image.Image, output string, opts Options) error {
	q := qualityValue(opts.Quality)

	switch opts.Format {
	case "jpeg":
		// JPEG has no alpha channel; composite onto white like a browser would
		bounds := img.Bounds()
		bg := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
		flat := imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
		return imaging.Save(flat, output, imaging.JPEGQuality(q))
	case "png", "gif", "bmp", "tiff":
		return imaging.Save(img, output)
	case "webp":
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		if err := webp.Encode(f, img, &webp.Options{Quality: float32(q)}); err != nil {
			f.Close()
			return fmt.Errorf("webp encode: %w", err)
		}
		return f.Close()
	}
	return fmt.Errorf("image format %q is not supported", opts.Format)
}
