package attachment

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lamim/chorus/internal/config"
)

func defaultPolicy() Policy {
	return NewPolicy(config.AttachmentConfig{
		MaxFileSizeMB:     10,
		AllowedExtensions: config.DefaultAllowedExtensions(),
		AllowedMIMETypes:  config.DefaultAllowedMIMETypes(),
	})
}

func TestPolicy_Validate(t *testing.T) {
	p := defaultPolicy()
	const mb = 1024 * 1024

	tests := []struct {
		name       string
		file       File
		wantAccept bool
		wantReason string
	}{
		{"pdf by mime", File{Name: "report", MIMEType: "application/pdf", Size: mb}, true, ""},
		{"markdown by extension", File{Name: "notes.MD", MIMEType: "application/octet-stream", Size: 10}, true, ""},
		{"mime with params", File{Name: "a", MIMEType: "text/plain; charset=utf-8", Size: 10}, true, ""},
		{"exactly 10MB", File{Name: "big.png", MIMEType: "image/png", Size: 10 * mb}, true, ""},
		{"too large", File{Name: "huge.png", MIMEType: "image/png", Size: 10*mb + 1}, false, "size limit"},
		{"executable", File{Name: "run.exe", MIMEType: "application/x-msdownload", Size: 10}, false, "not a supported file type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accepted, err := p.Validate([]File{tt.file})
			if tt.wantAccept {
				if err != nil || len(accepted) != 1 {
					t.Errorf("Validate() = %d accepted, err %v; want accepted", len(accepted), err)
				}
				return
			}
			if len(accepted) != 0 {
				t.Errorf("Validate() accepted %d files, want 0", len(accepted))
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantReason) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantReason)
			}
		})
	}
}

func TestPolicy_ValidateAggregatesRejections(t *testing.T) {
	p := defaultPolicy()
	files := []File{
		{Name: "ok.txt", MIMEType: "text/plain", Size: 5},
		{Name: "a.exe", Size: 5},
		{Name: "b.zip", Size: 5},
	}

	accepted, err := p.Validate(files)
	if len(accepted) != 1 || accepted[0].Name != "ok.txt" {
		t.Errorf("accepted = %v, want only ok.txt", accepted)
	}

	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Validate() error = %v, want *RejectedError", err)
	}
	if len(rejected.Reasons) != 2 {
		t.Errorf("got %d reasons, want 2", len(rejected.Reasons))
	}
	if !strings.Contains(err.Error(), "a.exe") || !strings.Contains(err.Error(), "b.zip") {
		t.Errorf("error message %q should name every rejected file", err.Error())
	}
}

func TestPolicy_FromMultipart(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("files", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("hello notes"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatal(err)
	}

	p := defaultPolicy()
	files, err := p.FromMultipart(req.MultipartForm.File["files"])
	if err != nil {
		t.Fatalf("FromMultipart() error = %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	if string(files[0].Data) != "hello notes" {
		t.Errorf("Data = %q, want file contents", files[0].Data)
	}
	if !strings.HasPrefix(files[0].MIMEType, "text/plain") {
		t.Errorf("MIMEType = %q, want text/plain", files[0].MIMEType)
	}

	if _, err := p.Validate(files); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	atts := ToAPI(files)
	if len(atts) != 1 || atts[0].MIMEType != "text/plain" {
		t.Errorf("ToAPI() = %+v, want text/plain attachment", atts)
	}
}
