// Package attachment validates uploaded files at the service boundary.
package attachment

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/lamim/chorus/internal/api"
	"github.com/lamim/chorus/internal/config"
)

// Policy holds the upload limits
type Policy struct {
	MaxBytes          int64
	AllowedExtensions map[string]bool
	AllowedMIMETypes  map[string]bool
}

// NewPolicy builds a Policy from the attachments config section
func NewPolicy(cfg config.AttachmentConfig) Policy {
	p := Policy{
		MaxBytes:          int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		AllowedExtensions: make(map[string]bool, len(cfg.AllowedExtensions)),
		AllowedMIMETypes:  make(map[string]bool, len(cfg.AllowedMIMETypes)),
	}
	for _, ext := range cfg.AllowedExtensions {
		p.AllowedExtensions[strings.ToLower(ext)] = true
	}
	for _, mt := range cfg.AllowedMIMETypes {
		p.AllowedMIMETypes[strings.ToLower(mt)] = true
	}
	return p
}

// File is an upload candidate
type File struct {
	Name     string
	MIMEType string
	Size     int64
	Data     []byte
}

// RejectedError lists every file that failed validation
type RejectedError struct {
	Reasons []string
}

func (e *RejectedError) Error() string {
	return "Some files were rejected:\n" + strings.Join(e.Reasons, "\n")
}

// Allowed reports whether f passes the MIME type or extension allow-list
func (p Policy) Allowed(f File) bool {
	mt := strings.ToLower(f.MIMEType)
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mt != "" && p.AllowedMIMETypes[mt] {
		return true
	}
	return p.AllowedExtensions[strings.ToLower(filepath.Ext(f.Name))]
}

// Validate splits files into accepted ones and one aggregated error for the rest.
// The error is nil when every file was accepted.
func (p Policy) Validate(files []File) ([]File, error) {
	var accepted []File
	var reasons []string
	for _, f := range files {
		switch {
		case f.Size > p.MaxBytes:
			reasons = append(reasons, fmt.Sprintf("%s exceeds the %d MB size limit", f.Name, p.MaxBytes/(1024*1024)))
		case !p.Allowed(f):
			reasons = append(reasons, fmt.Sprintf("%s is not a supported file type", f.Name))
		default:
			accepted = append(accepted, f)
		}
	}
	if len(reasons) > 0 {
		return accepted, &RejectedError{Reasons: reasons}
	}
	return accepted, nil
}

// FromMultipart reads uploaded parts, never reading more than MaxBytes+1 per file
func (p Policy) FromMultipart(headers []*multipart.FileHeader) ([]File, error) {
	files := make([]File, 0, len(headers))
	for _, h := range headers {
		f := File{Name: h.Filename, Size: h.Size, MIMEType: h.Header.Get("Content-Type")}
		if f.Size > p.MaxBytes {
			files = append(files, f)
			continue
		}

		src, err := h.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open upload %s: %w", h.Filename, err)
		}
		data, err := io.ReadAll(io.LimitReader(src, p.MaxBytes+1))
		src.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read upload %s: %w", h.Filename, err)
		}
		f.Data = data
		f.Size = int64(len(data))
		if f.MIMEType == "" || f.MIMEType == "application/octet-stream" {
			f.MIMEType = detectType(f.Name, data)
		}
		files = append(files, f)
	}
	return files, nil
}

func detectType(name string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

// ToAPI converts accepted files into backend attachments
func ToAPI(files []File) []api.Attachment {
	out := make([]api.Attachment, 0, len(files))
	for _, f := range files {
		mt := f.MIMEType
		if i := strings.Index(mt, ";"); i >= 0 {
			mt = strings.TrimSpace(mt[:i])
		}
		out = append(out, api.Attachment{Name: f.Name, MIMEType: mt, Data: f.Data})
	}
	return out
}
