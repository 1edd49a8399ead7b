// Package normalize turns whatever the content workflow returns into a single
// base64-encoded CSV artifact.
package normalize

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var (
	// ErrUnrecognizedResponse means no known shape carried CSV content.
	ErrUnrecognizedResponse = errors.New("unrecognized workflow response")
	// ErrPending means the body only acknowledged the request.
	ErrPending = errors.New("workflow accepted, result pending")
	// ErrDriveUnavailable means a Drive file was referenced but cannot be fetched.
	ErrDriveUnavailable = errors.New("google drive fetcher not configured")
	// ErrDriveFileTooLarge means the download would have been truncated.
	ErrDriveFileTooLarge = fmt.Errorf("drive file exceeds %d bytes", maxDriveBytes)
)

const maxDepth = 4

var (
	base64Fields   = []string{"csvBase64", "csv_base64", "base64", "data.base64", "fileContent"}
	contentFields  = []string{"csv", "content", "data.csv", "output"}
	filenameFields = []string{"name", "filename", "fileName", "csvFilename"}
	wrapperKeys    = map[string]bool{"json": true, "body": true, "data": true}
	pendingStates  = map[string]bool{"accepted": true, "processing": true, "started": true, "queued": true}
)

// Artifact is the normalized CSV.
type Artifact struct {
	CSVBase64 string
	Filename  string
}

// CSV returns the decoded bytes.
func (a *Artifact) CSV() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.CSVBase64)
}

// DriveFile references a file in Google Drive.
type DriveFile struct {
	ID             string
	Name           string
	MimeType       string
	WebContentLink string
}

// DriveFetcher downloads Drive files as CSV bytes.
type DriveFetcher interface {
	Fetch(ctx context.Context, file DriveFile) ([]byte, error)
}

type Normalizer struct {
	drive DriveFetcher
	now   func() time.Time
}

// New returns a Normalizer. drive may be nil when Drive is not configured.
func New(drive DriveFetcher) *Normalizer {
	return &Normalizer{drive: drive, now: time.Now}
}

// Normalize extracts the artifact from body. industry feeds the default
// filename.
func (n *Normalizer) Normalize(ctx context.Context, body []byte, industry string) (*Artifact, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrUnrecognizedResponse)
	}

	if !gjson.ValidBytes(trimmed) {
		if looksLikeCSV(string(trimmed)) {
			return n.artifact(trimmed, "", industry), nil
		}
		return nil, fmt.Errorf("%w: body is neither JSON nor CSV", ErrUnrecognizedResponse)
	}

	return n.fromValue(ctx, gjson.ParseBytes(trimmed), industry, 0)
}

func (n *Normalizer) fromValue(ctx context.Context, v gjson.Result, industry string, depth int) (*Artifact, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nested too deeply", ErrUnrecognizedResponse)
	}

	switch {
	case v.IsArray():
		items := v.Array()
		if len(items) == 0 {
			return nil, fmt.Errorf("%w: empty array", ErrUnrecognizedResponse)
		}
		return n.fromValue(ctx, items[0], industry, depth+1)
	case v.Type == gjson.String:
		return n.fromString(v.Str, "", industry)
	case v.IsObject():
		return n.fromObject(ctx, v, industry, depth)
	default:
		return nil, fmt.Errorf("%w: unexpected %s value", ErrUnrecognizedResponse, v.Type)
	}
}

func (n *Normalizer) fromObject(ctx context.Context, obj gjson.Result, industry string, depth int) (*Artifact, error) {
	name := filenameOf(obj)

	for _, field := range base64Fields {
		r := obj.Get(field)
		if r.Type != gjson.String || strings.TrimSpace(r.Str) == "" {
			continue
		}
		if data, ok := decodeBase64(r.Str); ok {
			return n.artifact(data, name, industry), nil
		}
		// some flows put plain CSV in fileContent
		if looksLikeCSV(r.Str) {
			return n.artifact([]byte(r.Str), name, industry), nil
		}
		return nil, fmt.Errorf("%w: %s is not valid base64", ErrUnrecognizedResponse, field)
	}

	for _, field := range contentFields {
		r := obj.Get(field)
		switch {
		case r.Type == gjson.String && looksLikeCSV(r.Str):
			return n.artifact([]byte(strings.TrimSpace(r.Str)), name, industry), nil
		case r.IsArray():
			if data, ok := rowsToCSV(r); ok {
				return n.artifact(data, name, industry), nil
			}
		}
	}

	if file, ok := driveFileOf(obj); ok {
		if n.drive == nil {
			return nil, ErrDriveUnavailable
		}
		data, err := n.drive.Fetch(ctx, file)
		if err != nil {
			return nil, fmt.Errorf("fetch drive file %s: %w", file.ID, err)
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, fmt.Errorf("%w: drive file %s is empty", ErrUnrecognizedResponse, file.ID)
		}
		if name == "" {
			name = file.Name
		}
		return n.artifact(data, name, industry), nil
	}

	if inner, ok := unwrap(obj); ok {
		return n.fromValue(ctx, inner, industry, depth+1)
	}

	if isAcknowledgement(obj) {
		return nil, ErrPending
	}

	return nil, fmt.Errorf("%w: no csv, base64 or drive fields", ErrUnrecognizedResponse)
}

func (n *Normalizer) fromString(s, name, industry string) (*Artifact, error) {
	if looksLikeCSV(s) {
		return n.artifact([]byte(strings.TrimSpace(s)), name, industry), nil
	}
	if data, ok := decodeBase64(s); ok && looksLikeCSV(string(data)) {
		return n.artifact(data, name, industry), nil
	}
	return nil, fmt.Errorf("%w: string is not CSV", ErrUnrecognizedResponse)
}

func (n *Normalizer) artifact(data []byte, name, industry string) *Artifact {
	if name == "" {
		name = DefaultFilename(industry, n.now())
	}
	return &Artifact{
		CSVBase64: base64.StdEncoding.EncodeToString(data),
		Filename:  ensureCSVExt(name),
	}
}

// DefaultFilename is content-calendar-<industry>-<yyyy-mm-dd>.csv.
func DefaultFilename(industry string, at time.Time) string {
	return fmt.Sprintf("content-calendar-%s-%s.csv", slugify(industry), at.UTC().Format("2006-01-02"))
}

// EncodeCSV renders records and returns them as an artifact payload.
func EncodeCSV(records [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func filenameOf(obj gjson.Result) string {
	for _, field := range filenameFields {
		if r := obj.Get(field); r.Type == gjson.String && strings.TrimSpace(r.Str) != "" {
			return r.Str
		}
	}
	return ""
}

func driveFileOf(obj gjson.Result) (DriveFile, bool) {
	id := obj.Get("id").String()
	if id == "" {
		id = obj.Get("fileId").String()
	}
	if id == "" {
		return DriveFile{}, false
	}

	file := DriveFile{
		ID:             id,
		Name:           obj.Get("name").String(),
		MimeType:       obj.Get("mimeType").String(),
		WebContentLink: obj.Get("webContentLink").String(),
	}
	isDrive := file.MimeType != "" || file.WebContentLink != "" ||
		obj.Get("webViewLink").Exists() || obj.Get("kind").String() == "drive#file"
	return file, isDrive
}

// unwrap descends into single-key wrappers such as {"json": {...}}.
func unwrap(obj gjson.Result) (gjson.Result, bool) {
	m := obj.Map()
	if len(m) != 1 {
		return gjson.Result{}, false
	}
	for key, value := range m {
		if wrapperKeys[key] && (value.IsObject() || value.IsArray() || value.Type == gjson.String) {
			return value, true
		}
	}
	return gjson.Result{}, false
}

func isAcknowledgement(obj gjson.Result) bool {
	if pendingStates[strings.ToLower(obj.Get("status").String())] {
		return true
	}
	return strings.Contains(strings.ToLower(obj.Get("message").String()), "workflow was started")
}

func decodeBase64(s string) ([]byte, bool) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(s); err == nil && len(data) > 0 {
			return data, true
		}
	}
	return nil, false
}

// looksLikeCSV wants a comma-separated header on the first line.
func looksLikeCSV(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") || strings.HasPrefix(s, "<") {
		return false
	}
	first := s
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		first = s[:i]
	}
	return strings.Contains(first, ",")
}

// rowsToCSV renders an array of flat objects or arrays as CSV.
func rowsToCSV(arr gjson.Result) ([]byte, bool) {
	items := arr.Array()
	if len(items) == 0 {
		return nil, false
	}

	var records [][]string
	if items[0].IsObject() {
		var header []string
		seen := map[string]bool{}
		for _, item := range items {
			item.ForEach(func(key, _ gjson.Result) bool {
				if !seen[key.Str] {
					seen[key.Str] = true
					header = append(header, key.Str)
				}
				return true
			})
		}
		if len(header) == 0 {
			return nil, false
		}
		records = append(records, header)
		for _, item := range items {
			row := make([]string, len(header))
			for i, key := range header {
				row[i] = item.Get(gjson.Escape(key)).String()
			}
			records = append(records, row)
		}
	} else if items[0].IsArray() {
		for _, item := range items {
			var row []string
			for _, cell := range item.Array() {
				row = append(row, cell.String())
			}
			records = append(records, row)
		}
	} else {
		return nil, false
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if slug == "" {
		return "general"
	}
	return slug
}

func ensureCSVExt(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "content-calendar"
	}
	if ext := path.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	return name + ".csv"
}
