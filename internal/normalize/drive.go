package normalize

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/xauti/content_go_server/config"
)

const (
	mimeGoogleSheet = "application/vnd.google-apps.spreadsheet"
	maxDriveBytes   = 20 << 20
)

// DriveClient downloads workflow outputs stored in Google Drive. Without
// credentials it falls back to the public download links.
type DriveClient struct {
	svc        *drive.Service
	httpClient *http.Client
	// publicBase is overridden in tests
	publicBase string
	maxBytes   int64
}

// NewDriveClient builds a client from service account JSON, a credentials
// file or an API key, in that order.
func NewDriveClient(ctx context.Context, cfg config.GoogleDriveConfig) (*DriveClient, error) {
	c := &DriveClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		publicBase: "https://drive.google.com",
		maxBytes:   maxDriveBytes,
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "" || cfg.CredentialsFile != "":
		raw := []byte(cfg.CredentialsJSON)
		if len(raw) == 0 {
			data, err := os.ReadFile(cfg.CredentialsFile)
			if err != nil {
				return nil, fmt.Errorf("read drive credentials: %w", err)
			}
			raw = data
		}
		creds, err := google.CredentialsFromJSON(ctx, raw, drive.DriveReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("parse drive credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	default:
		return c, nil
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	c.svc = svc
	return c, nil
}

// Fetch downloads the file, exporting Google Sheets as CSV.
func (c *DriveClient) Fetch(ctx context.Context, file DriveFile) ([]byte, error) {
	if c.svc != nil && file.ID != "" {
		data, err := c.fetchAPI(ctx, file)
		if err == nil {
			return data, nil
		}
		if file.WebContentLink == "" {
			return nil, err
		}
	}
	return c.fetchPublic(ctx, file)
}

func (c *DriveClient) fetchAPI(ctx context.Context, file DriveFile) ([]byte, error) {
	var resp *http.Response
	var err error
	if file.MimeType == mimeGoogleSheet {
		resp, err = c.svc.Files.Export(file.ID, "text/csv").Context(ctx).Download()
	} else {
		resp, err = c.svc.Files.Get(file.ID).SupportsAllDrives(true).Context(ctx).Download()
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return c.readBody(resp.Body)
}

func (c *DriveClient) fetchPublic(ctx context.Context, file DriveFile) ([]byte, error) {
	link := file.WebContentLink
	if link == "" {
		if file.ID == "" {
			return nil, fmt.Errorf("drive file has neither id nor download link")
		}
		if file.MimeType == mimeGoogleSheet {
			link = fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv", url.PathEscape(file.ID))
		} else {
			link = c.publicBase + "/uc?export=download&id=" + url.QueryEscape(file.ID)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("drive download returned status %d", resp.StatusCode)
	}
	return c.readBody(resp.Body)
}

// readBody fails instead of returning a truncated file.
func (c *DriveClient) readBody(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, c.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.maxBytes {
		return nil, ErrDriveFileTooLarge
	}
	return data, nil
}
