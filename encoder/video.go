package encoder

import (
	"context"
	"os"
	"strings"

	"mediaforge/models"
)

type videoPreset struct {
	crf          string
	preset       string
	videoBitrate string
	audioBitrate string
}

var videoPresets = map[models.Quality]videoPreset{
	models.QualityHigh:   {crf: "18", preset: "slow", videoBitrate: "2000k", audioBitrate: "192k"},
	models.QualityMedium: {crf: "23", preset: "medium", videoBitrate: "1000k", audioBitrate: "128k"},
	models.QualityLow:    {crf: "28", preset: "fast", videoBitrate: "500k", audioBitrate: "96k"},
}

// muxer names ffmpeg expects for -f
var videoMuxers = map[string]string{
	"mp4":  "mp4",
	"avi":  "avi",
	"mov":  "mov",
	"mkv":  "matroska",
	"webm": "webm",
}

const gifFilter = "fps=15,scale=480:-1:flags=lanczos"

// VideoBackend shells out to ffmpeg.
type VideoBackend struct {
	FFmpeg string
}

func NewVideoBackend() *VideoBackend {
	return &VideoBackend{FFmpeg: "ffmpeg"}
}

func (b *VideoBackend) Transcode(ctx context.Context, input, output string, opts Options) error {
	if opts.Format == "gif" {
		return b.toGIF(ctx, input, output)
	}
	args, err := videoArgs(input, output, opts)
	if err != nil {
		return err
	}
	return runTool(ctx, b.FFmpeg, args...)
}

// toGIF runs the two-pass palette pipeline; a single pass dithers badly.
func (b *VideoBackend) toGIF(ctx context.Context, input, output string) error {
	palette := strings.TrimSuffix(output, ".gif") + "_palette.png"
	defer os.Remove(palette)

	pass1 := []string{"-y", "-hide_banner", "-loglevel", "error",
		"-i", input, "-vf", gifFilter + ",palettegen", palette}
	if err := runTool(ctx, b.FFmpeg, pass1...); err != nil {
		return err
	}

	pass2 := []string{"-y", "-hide_banner", "-loglevel", "error",
		"-i", input, "-i", palette,
		"-lavfi", gifFilter + " [x]; [x][1:v] paletteuse", output}
	return runTool(ctx, b.FFmpeg, pass2...)
}

func videoArgs(input, output string, opts Options) ([]string, error) {
	muxer, ok := videoMuxers[opts.Format]
	if !ok {
		return nil, unsupportedFormat("video", opts.Format)
	}
	p, ok := videoPresets[opts.Quality]
	if !ok {
		p = videoPresets[models.QualityMedium]
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", input}
	if opts.Format == "webm" {
		args = append(args,
			"-c:v", "libvpx", "-b:v", p.videoBitrate,
			"-c:a", "libvorbis", "-b:a", p.audioBitrate)
	} else {
		args = append(args,
			"-c:v", "libx264", "-crf", p.crf, "-preset", p.preset,
			"-c:a", "aac", "-b:a", p.audioBitrate)
	}
	if opts.Format == "mp4" || opts.Format == "mov" {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, "-f", muxer, output), nil
}
