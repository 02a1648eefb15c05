package restyutil

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// PageCapture dumps raw response bodies into a directory, one file per
// response, named after the basename of the request path. Unlike
// FilesystemOutput it never wipes the directory, captures from earlier runs
// keep their numbering.
type PageCapture struct {
	directory string
}

func NewPageCapture(dir string) (PageCapture, error) {
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		return PageCapture{}, err
	}
	return PageCapture{directory: dir}, nil
}

// filename derives `<basename>_<n>.html` from the response url, where n is
// the smallest non-negative integer that does not collide with an existing
// capture.
func (c PageCapture) filename(rawUrl string) string {
	name := "index"
	parsed, err := url.Parse(rawUrl)
	if err == nil {
		base := path.Base(parsed.Path)
		if base != "" && base != "." && base != "/" {
			name = strings.TrimSuffix(base, ".html")
		}
	}

	i := 0
	for {
		candidate := fmt.Sprintf("%s_%d.html", name, i)
		_, err := os.Stat(filepath.Join(c.directory, candidate))
		if os.IsNotExist(err) {
			return candidate
		}
		i++
	}
}

// Write captures a response body, returning the path it was written to.
func (c PageCapture) Write(rawUrl string, body []byte) (string, error) {
	out := filepath.Join(c.directory, c.filename(rawUrl))
	err := os.WriteFile(out, body, 0600)
	if err != nil {
		return "", err
	}
	return out, nil
}
