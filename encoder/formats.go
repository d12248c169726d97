package encoder

import (
	"strings"

	"mediaforge/failures"
	"mediaforge/models"
)

var extensionTable = map[string]models.Category{
	".jpg":  models.CategoryImage,
	".jpeg": models.CategoryImage,
	".png":  models.CategoryImage,
	".gif":  models.CategoryImage,
	".bmp":  models.CategoryImage,
	".tiff": models.CategoryImage,
	".webp": models.CategoryImage,
	".svg":  models.CategoryImage,

	".mp4":  models.CategoryVideo,
	".avi":  models.CategoryVideo,
	".mov":  models.CategoryVideo,
	".mkv":  models.CategoryVideo,
	".wmv":  models.CategoryVideo,
	".flv":  models.CategoryVideo,
	".webm": models.CategoryVideo,

	".mp3":  models.CategoryAudio,
	".wav":  models.CategoryAudio,
	".flac": models.CategoryAudio,
	".aac":  models.CategoryAudio,
	".ogg":  models.CategoryAudio,
	".m4a":  models.CategoryAudio,
}

var outputFormats = map[models.Category][]string{
	models.CategoryImage: {"jpeg", "png", "webp", "gif", "bmp", "tiff"},
	models.CategoryVideo: {"mp4", "avi", "mov", "mkv", "webm", "gif"},
	models.CategoryAudio: {"mp3", "wav", "flac", "aac", "ogg"},
}

// Classify maps a file extension (with or without the dot, any case) to its
// category.
func Classify(ext string) (models.Category, error) {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if cat, ok := extensionTable[ext]; ok {
		return cat, nil
	}
	return 0, failures.Validationf("unsupported file format %q", ext)
}

// OutputFormats returns a copy of the target formats for cat.
func OutputFormats(cat models.Category) []string {
	return append([]string(nil), outputFormats[cat]...)
}

// SupportsOutput reports whether format is a valid target for cat.
func SupportsOutput(cat models.Category, format string) bool {
	for _, f := range outputFormats[cat] {
		if f == format {
			return true
		}
	}
	return false
}
