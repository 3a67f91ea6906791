package dataset

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Upload is a user-supplied dataset file. Its bytes are held by the Context
// that accepted it and lent by pointer to request builders.
type Upload struct {
	Name string
	// ContentType is the declared media type, as a browser would report it.
	ContentType string
	Data        []byte
	// Path is the on-disk source, empty for in-memory uploads.
	Path string
}

// Size returns the byte length of the upload.
func (u *Upload) Size() int { return len(u.Data) }

// OpenUpload reads a file from disk and declares its content type from the
// extension, falling back to content sniffing.
func OpenUpload(path string) (*Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	name := filepath.Base(path)
	return &Upload{
		Name:        name,
		ContentType: declaredType(name, data),
		Data:        data,
		Path:        path,
	}, nil
}

func declaredType(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".csv" {
		return "text/csv"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

var csvTypes = map[string]bool{
	"text/csv":                    true,
	"application/csv":             true,
	"text/comma-separated-values": true,
}

// isCSV reports whether the declared type names a CSV file. Parameters such
// as charset are ignored. application/vnd.ms-excel is what some platforms
// declare for .csv files, so it is accepted only together with that extension.
func isCSV(u *Upload) bool {
	mt, _, err := mime.ParseMediaType(u.ContentType)
	if err != nil {
		return false
	}
	if csvTypes[mt] {
		return true
	}
	return mt == "application/vnd.ms-excel" && strings.EqualFold(filepath.Ext(u.Name), ".csv")
}
