package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{name: "config", code: "BS102", wantMsg: "Invalid config file", wantCat: CategoryConfig},
		{name: "auth", code: "BS202", wantMsg: "Token rejected", wantCat: CategoryAuth},
		{name: "connection", code: "BS302", wantMsg: "Connection timed out", wantCat: CategoryConnection},
		{name: "archive", code: "BS401", wantMsg: "Archive write failed", wantCat: CategoryArchive},
		{name: "unknown", code: "BS999", wantMsg: "Unknown error", wantCat: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	if got := New("BS303").Error(); got != "BS303: Not connected" {
		t.Errorf("Error() = %q", got)
	}
	if got := Newf(CategoryCLI, "room %d", 42).Error(); got != "room 42" {
		t.Errorf("Error() = %q", got)
	}
	wrapped := New("BS301").Wrap(io.ErrUnexpectedEOF)
	if got := wrapped.Error(); got != "BS301: Connection failed: unexpected EOF" {
		t.Errorf("Error() = %q", got)
	}
}

func TestError_Wrap(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := New("BS301").Wrap(cause)
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestError_WithLocation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boardsync.json")
	content := "{\n  \"url\": \"wss://example.test/ws\",\n  \"heartbeat\": \"soon\",\n  \"userId\": 9\n}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	err := New("BS104").WithLocation(path, 3, 16)
	if err.Location.Line != 3 || err.Location.Column != 16 {
		t.Errorf("Location = %+v", err.Location)
	}
	if len(err.Context) != 5 {
		t.Fatalf("Context has %d lines, want 5", len(err.Context))
	}
	if err.Context[2] != `  "heartbeat": "soon",` {
		t.Errorf("Context[2] = %q", err.Context[2])
	}
}

func TestWithLocation_MissingFile(t *testing.T) {
	err := New("BS102").WithLocation("/nonexistent/boardsync.json", 1, 1)
	if err.Context != nil {
		t.Errorf("Context = %v, want nil", err.Context)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "BS301") != nil {
		t.Error("FromError(nil) should be nil")
	}

	plain := stderrors.New("boom")
	ce := FromError(plain, "BS401")
	if ce.Code != "BS401" || ce.Wrapped != plain {
		t.Errorf("FromError(plain) = %+v", ce)
	}

	coded := New("BS202")
	if got := FromError(coded, "BS301"); got != coded {
		t.Error("FromError should keep an existing code")
	}
}

func TestCode(t *testing.T) {
	if got := Code(New("BS303")); got != "BS303" {
		t.Errorf("Code = %q", got)
	}
	if got := Code(stderrors.New("plain")); got != "" {
		t.Errorf("Code(plain) = %q", got)
	}
}

func TestLocation_String(t *testing.T) {
	tests := []struct {
		loc  *Location
		want string
	}{
		{nil, ""},
		{&Location{File: "boardsync.yaml", Line: 4}, "boardsync.yaml:4"},
		{&Location{File: "boardsync.json", Line: 7, Column: 3}, "boardsync.json:7:3"},
	}
	for _, tt := range tests {
		if got := tt.loc.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("BS201").
		WithSuggestion("set BOARDSYNC_TOKEN").
		Wrap(stderrors.New("token source returned nothing"))
	out := err.Format()

	for _, want := range []string{
		"ERROR BS201: No auth token",
		"The client needs a bearer token",
		"Cause: token source returned nothing",
		"Hint: set BOARDSYNC_TOKEN",
		"Learn more: https://boardsync.dev/docs/errors/BS201",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("Format() contains color codes with colors disabled")
	}
}

func TestFormatCompact(t *testing.T) {
	err := New("BS102")
	err.Location = &Location{File: "boardsync.yaml", Line: 2}
	if got := err.FormatCompact(); got != "boardsync.yaml:2: BS102: Invalid config file" {
		t.Errorf("FormatCompact() = %q", got)
	}
}

func TestFormatJSON(t *testing.T) {
	err := New("BS302").Wrap(stderrors.New("i/o timeout"))
	err.Location = &Location{File: "boardsync.json", Line: 3}

	var got map[string]any
	if e := json.Unmarshal([]byte(err.FormatJSON()), &got); e != nil {
		t.Fatalf("FormatJSON is not JSON: %v", e)
	}
	if got["code"] != "BS302" || got["category"] != "connection" || got["cause"] != "i/o timeout" {
		t.Errorf("FormatJSON = %v", got)
	}
	loc, _ := got["location"].(map[string]any)
	if loc["line"] != float64(3) {
		t.Errorf("location = %v", loc)
	}
}

func TestPrint(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	Print(&buf, New("BS303"))
	if !strings.Contains(buf.String(), "ERROR BS303") {
		t.Errorf("coded output = %q", buf.String())
	}

	buf.Reset()
	Print(&buf, stderrors.New("plain failure"))
	if !strings.Contains(buf.String(), "ERROR: plain failure") {
		t.Errorf("plain output = %q", buf.String())
	}
}

func TestGetAllCodes(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) != len(registry) {
		t.Fatalf("GetAllCodes returned %d codes, registry has %d", len(codes), len(registry))
	}
	for i, code := range codes {
		if !strings.HasPrefix(code, "BS") {
			t.Errorf("code %q lacks the BS prefix", code)
		}
		if i > 0 && codes[i-1] >= code {
			t.Errorf("codes not sorted at %d: %q >= %q", i, codes[i-1], code)
		}
		tmpl, _ := GetTemplate(code)
		if tmpl.DocURL != docBase+code {
			t.Errorf("%s DocURL = %q", code, tmpl.DocURL)
		}
	}
}

func TestGetTemplate(t *testing.T) {
	tmpl, ok := GetTemplate("BS304")
	if !ok || tmpl.Category != CategoryConnection {
		t.Errorf("GetTemplate(BS304) = %+v, %v", tmpl, ok)
	}
	if _, ok := GetTemplate("BS000"); ok {
		t.Error("GetTemplate(BS000) should not exist")
	}
}

func TestRegister(t *testing.T) {
	Register("BS999", ErrorTemplate{Category: CategoryCLI, Message: "Custom"})
	defer delete(registry, "BS999")

	if got := New("BS999").Message; got != "Custom" {
		t.Errorf("Message = %q", got)
	}
}

func TestWrapText(t *testing.T) {
	if wrapText("", 10) != nil {
		t.Error("empty text should wrap to nil")
	}
	lines := wrapText("the quick brown fox jumps over the lazy dog", 15)
	for _, line := range lines {
		if len(line) > 15 {
			t.Errorf("line %q longer than 15", line)
		}
	}
	if strings.Join(lines, " ") != "the quick brown fox jumps over the lazy dog" {
		t.Errorf("wrapText lost words: %v", lines)
	}
}
