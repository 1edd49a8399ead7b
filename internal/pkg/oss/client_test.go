package oss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xauti/content_go_server/config"
)

func newTestClient(t *testing.T, cdn string) *Client {
	t.Helper()
	c, err := NewClient(&config.OSSConfig{
		Endpoint:        "oss-us-west-1.aliyuncs.com",
		AccessKeyID:     "id",
		AccessKeySecret: "secret",
		BucketName:      "xauti-content",
		CDNDomain:       cdn,
	})
	require.NoError(t, err)
	return c
}

func TestEnabled(t *testing.T) {
	assert.False(t, Enabled(nil))
	assert.False(t, Enabled(&config.OSSConfig{Endpoint: "oss-us-west-1.aliyuncs.com"}))
	assert.True(t, Enabled(&config.OSSConfig{Endpoint: "oss-us-west-1.aliyuncs.com", BucketName: "b"}))
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey(3, "abc-123", "../../content-calendar-fitness.csv")
	assert.Equal(t, "content/3/abc-123/content-calendar-fitness.csv", key)
}

func TestGetURL_CDN(t *testing.T) {
	c := newTestClient(t, "cdn.xauti.com")
	assert.Equal(t, "https://cdn.xauti.com/content/0/k/a.csv", c.GetURL("content/0/k/a.csv"))
}

func TestExtractObjectKey(t *testing.T) {
	c := newTestClient(t, "cdn.xauti.com")

	assert.Equal(t, "content/0/k/a.csv", c.ExtractObjectKey("https://cdn.xauti.com/content/0/k/a.csv"))
	assert.Equal(t, "content/1/k/b.csv",
		c.ExtractObjectKey("https://xauti-content.oss-us-west-1.aliyuncs.com/content/1/k/b.csv"))
	assert.Equal(t, "a.csv", c.ExtractObjectKey("a.csv"))
}

func TestGetSignedURL(t *testing.T) {
	c := newTestClient(t, "")

	signed, err := c.GetSignedURL("content/0/k/a.csv", 60)
	require.NoError(t, err)
	assert.Contains(t, signed, "content/0/k/a.csv")
	assert.Contains(t, signed, "Signature=")
}
