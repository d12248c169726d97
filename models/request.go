package models

import (
	"regexp"
	"strings"

	"mediaforge/failures"
)

// Category is the closed set of media kinds, each bound to one backend.
type Category int

const (
	CategoryImage Category = iota + 1
	CategoryVideo
	CategoryAudio
)

func (c Category) String() string {
	switch c {
	case CategoryImage:
		return "image"
	case CategoryVideo:
		return "video"
	case CategoryAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// ParseCategory accepts "image", "video" or "audio".
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(s) {
	case "image":
		return CategoryImage, nil
	case "video":
		return CategoryVideo, nil
	case "audio":
		return CategoryAudio, nil
	}
	return 0, failures.Validationf("unknown file type %q", s)
}

// Quality is the encoder effort hint.
type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

// ParseQuality maps "" to medium and rejects anything outside the enum.
func ParseQuality(s string) (Quality, error) {
	switch Quality(strings.ToLower(s)) {
	case "", QualityMedium:
		return QualityMedium, nil
	case QualityHigh:
		return QualityHigh, nil
	case QualityLow:
		return QualityLow, nil
	}
	return "", failures.Validationf("unknown quality %q", s)
}

var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidJobID reports whether id is safe to use in scratch and object names.
func ValidJobID(id string) bool {
	return jobIDPattern.MatchString(id)
}

// ConversionRequest is one request to convert a stored object.
type ConversionRequest struct {
	Source       ObjectReference `json:"source"`
	JobID        string          `json:"jobId,omitempty"`
	TargetFormat string          `json:"targetFormat"`
	Quality      Quality         `json:"quality,omitempty"`
	Width        int             `json:"width,omitempty"`
	Height       int             `json:"height,omitempty"`
}

// ResolveJobID returns the explicit job id or the source path stem. Only an
// explicit id is held to ValidJobID; a derived stem is used as-is unless it
// cannot name a file.
func (r ConversionRequest) ResolveJobID() (string, error) {
	if r.JobID != "" {
		if !ValidJobID(r.JobID) {
			return "", failures.Validationf("invalid job id %q", r.JobID)
		}
		return r.JobID, nil
	}
	id := r.Source.Stem()
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, "\\\x00") {
		return "", failures.Validationf("cannot derive a job id from %q", r.Source.Path)
	}
	return id, nil
}

// JobResult is returned to the caller of a successful job.
type JobResult struct {
	Success          bool   `json:"success"`
	JobID            string `json:"jobId"`
	DownloadURL      string `json:"downloadURL"`
	OutputFilename   string `json:"outputFilename"`
	ExpiresInMinutes int    `json:"expiresInMinutes"`
	DeleteInMinutes  int    `json:"deleteInMinutes"`
}

// UploadSlot describes where a client should put a new source file.
type UploadSlot struct {
	JobID            string `json:"jobId"`
	FileType         string `json:"fileType"`
	OriginalFilename string `json:"originalFilename"`
	ObjectURI        string `json:"objectURI"`
	ObjectName       string `json:"objectName"`
	UploadURL        string `json:"uploadURL"`
	ExpiresInMinutes int    `json:"expiresInMinutes"`
}
