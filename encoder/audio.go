package encoder

import (
	"context"
	"fmt"

	"mediaforge/models"
)

var audioBitrates = map[models.Quality]string{
	models.QualityHigh:   "320k",
	models.QualityMedium: "192k",
	models.QualityLow:    "128k",
}

var mp3VBR = map[models.Quality]string{
	models.QualityHigh:   "2",
	models.QualityMedium: "5",
	models.QualityLow:    "9",
}

// AudioBackend shells out to ffmpeg and drops any video stream.
type AudioBackend struct {
	FFmpeg string
}

func NewAudioBackend() *AudioBackend {
	return &AudioBackend{FFmpeg: "ffmpeg"}
}

func (b *AudioBackend) Transcode(ctx context.Context, input, output string, opts Options) error {
	args, err := audioArgs(input, output, opts)
	if err != nil {
		return err
	}
	return runTool(ctx, b.FFmpeg, args...)
}

func audioArgs(input, output string, opts Options) ([]string, error) {
	q := opts.Quality
	if _, ok := audioBitrates[q]; !ok {
		q = models.QualityMedium
	}
	bitrate := audioBitrates[q]

	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", input, "-vn"}
	switch opts.Format {
	case "mp3":
		args = append(args, "-c:a", "libmp3lame", "-b:a", bitrate, "-q:a", mp3VBR[q], "-f", "mp3")
	case "aac":
		args = append(args, "-c:a", "aac", "-b:a", bitrate, "-f", "adts")
	case "ogg":
		args = append(args, "-c:a", "libvorbis", "-b:a", bitrate, "-f", "ogg")
	case "flac":
		args = append(args, "-c:a", "flac", "-compression_level", "8", "-f", "flac")
	case "wav":
		args = append(args, "-c:a", "pcm_s16le", "-f", "wav")
	default:
		return nil, unsupportedFormat("audio", opts.Format)
	}
	return append(args, output), nil
}

func unsupportedFormat(kind, format string) error {
	return fmt.Errorf("%s format %q is not supported", kind, format)
}
