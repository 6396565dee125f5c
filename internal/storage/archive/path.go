package archive

import (
	"path"
	"strings"

	"github.com/newthinker/buddy/internal/core"
)

// Clean normalizes p and rejects paths that escape the storage root.
func Clean(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	cleaned := path.Clean("/" + p)[1:]
	if cleaned == "" || strings.Contains(p, "..") {
		return "", core.Errorf(core.ErrArtifactNotFound, "invalid path %q", p)
	}
	return cleaned, nil
}

// ContentType guesses the media type from the file extension.
func ContentType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".csv":
		return "text/csv"
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}
