package caddy

import (
	"testing"
	"time"

	"github.com/caddyserver/caddy/v2"
	"github.com/caddyserver/caddy/v2/caddyconfig/caddyfile"
	"github.com/stretchr/testify/assert"
)

func TestUnmarshalCaddyfile(t *testing.T) {
	d := caddyfile.NewTestDispenser(`tzh3_lookup {
		bucket s3://zones?region=us-east-1
		key timezones.tzh3
		refresh 10m
	}`)
	var m Middleware
	assert.Nil(t, m.UnmarshalCaddyfile(d))
	assert.Equal(t, "s3://zones?region=us-east-1", m.Bucket)
	assert.Equal(t, "timezones.tzh3", m.Key)
	assert.Equal(t, caddy.Duration(10*time.Minute), m.Refresh)
	assert.Nil(t, m.Validate())
}

func TestUnmarshalCaddyfileErrors(t *testing.T) {
	var m Middleware
	assert.NotNil(t, m.UnmarshalCaddyfile(caddyfile.NewTestDispenser(`tzh3_lookup {
		refresh soon
	}`)))
	assert.NotNil(t, m.UnmarshalCaddyfile(caddyfile.NewTestDispenser(`tzh3_lookup {
		cache_size 64
	}`)))
	assert.NotNil(t, m.UnmarshalCaddyfile(caddyfile.NewTestDispenser(`tzh3_lookup {
		key
	}`)))
}

func TestValidate(t *testing.T) {
	m := Middleware{Bucket: "file:///srv/zones"}
	assert.NotNil(t, m.Validate())
	m.Key = "timezones.tzh3"
	assert.Nil(t, m.Validate())
}
