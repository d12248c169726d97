package models

import (
	"fmt"
	"path"
	"strings"

	"mediaforge/failures"
)

// Remote prefixes for job artifacts.
const (
	InputPrefix  = "inputs/"
	OutputPrefix = "outputs/"
)

// ObjectReference addresses one object in the remote store.
type ObjectReference struct {
	Container string `json:"container"`
	Path      string `json:"path"`
}

// ParseObjectURI parses "<scheme>://<container>/<path>". Both parts must be
// non-empty; the path keeps any further slashes.
func ParseObjectURI(uri, scheme string) (ObjectReference, error) {
	prefix := scheme + "://"
	if !strings.HasPrefix(uri, prefix) {
		return ObjectReference{}, failures.Validationf("malformed object URI %q: expected %s<container>/<path>", uri, prefix)
	}
	container, objectPath, ok := strings.Cut(strings.TrimPrefix(uri, prefix), "/")
	if !ok || container == "" || objectPath == "" {
		return ObjectReference{}, failures.Validationf("malformed object URI %q: expected %s<container>/<path>", uri, prefix)
	}
	return ObjectReference{Container: container, Path: objectPath}, nil
}

// URI formats the reference back into its string form.
func (r ObjectReference) URI(scheme string) string {
	return fmt.Sprintf("%s://%s/%s", scheme, r.Container, r.Path)
}

// Ext returns the lowercased extension of the object path, including the dot.
func (r ObjectReference) Ext() string {
	return strings.ToLower(path.Ext(r.Path))
}

// Stem returns the final path element without its extension.
func (r ObjectReference) Stem() string {
	base := path.Base(r.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}

// InputObjectName is where an uploaded source for jobID is placed.
func InputObjectName(jobID, ext string) string {
	return InputPrefix + jobID + ext
}

// OutputObjectName is where a converted file is stored.
func OutputObjectName(outputFilename string) string {
	return OutputPrefix + outputFilename
}

// OutputFilename names the converted artifact of a job.
func OutputFilename(jobID, targetFormat string) string {
	return fmt.Sprintf("%s_converted.%s", jobID, targetFormat)
}
