package dns

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudflare/cloudflare-go"
)

var ErrNotConfigured = errors.New("cloudflare is not configured")

// Record is a provisioned DNS record.
type Record struct {
	ID      string
	Name    string
	Content string
}

// Provisioner creates the CNAME records that route tenant hostnames.
type Provisioner interface {
	UpsertCNAME(ctx context.Context, name, target string) (*Record, error)
	Delete(ctx context.Context, recordID string) error
}

type CloudflareProvisioner struct {
	api    *cloudflare.API
	zoneID string
}

// NewCloudflareProvisioner returns ErrNotConfigured without a token or zone.
func NewCloudflareProvisioner(apiToken, zoneID string, opts ...cloudflare.Option) (*CloudflareProvisioner, error) {
	if apiToken == "" || zoneID == "" {
		return nil, ErrNotConfigured
	}
	api, err := cloudflare.NewWithAPIToken(apiToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create cloudflare client: %w", err)
	}
	return &CloudflareProvisioner{api: api, zoneID: zoneID}, nil
}

// UpsertCNAME creates a proxied CNAME, or repoints the existing one.
func (p *CloudflareProvisioner) UpsertCNAME(ctx context.Context, name, target string) (*Record, error) {
	rc := cloudflare.ZoneIdentifier(p.zoneID)
	proxied := true

	existing, _, err := p.api.ListDNSRecords(ctx, rc, cloudflare.ListDNSRecordsParams{Type: "CNAME", Name: name})
	if err != nil {
		return nil, fmt.Errorf("list dns records: %w", err)
	}

	if len(existing) > 0 {
		record, err := p.api.UpdateDNSRecord(ctx, rc, cloudflare.UpdateDNSRecordParams{
			ID:      existing[0].ID,
			Type:    "CNAME",
			Name:    name,
			Content: target,
			Proxied: &proxied,
		})
		if err != nil {
			return nil, fmt.Errorf("update dns record: %w", err)
		}
		return &Record{ID: record.ID, Name: record.Name, Content: record.Content}, nil
	}

	record, err := p.api.CreateDNSRecord(ctx, rc, cloudflare.CreateDNSRecordParams{
		Type:    "CNAME",
		Name:    name,
		Content: target,
		Proxied: &proxied,
		TTL:     1,
		Comment: "white-label tenant",
	})
	if err != nil {
		return nil, fmt.Errorf("create dns record: %w", err)
	}
	return &Record{ID: record.ID, Name: record.Name, Content: record.Content}, nil
}

func (p *CloudflareProvisioner) Delete(ctx context.Context, recordID string) error {
	return p.api.DeleteDNSRecord(ctx, cloudflare.ZoneIdentifier(p.zoneID), recordID)
}
