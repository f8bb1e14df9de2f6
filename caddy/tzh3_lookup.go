package caddy

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/caddyserver/caddy/v2"
	"github.com/caddyserver/caddy/v2/caddyconfig/caddyfile"
	"github.com/caddyserver/caddy/v2/caddyconfig/httpcaddyfile"
	"github.com/caddyserver/caddy/v2/modules/caddyhttp"
	"github.com/protomaps/go-tzh3/tzh3"
	"go.uber.org/zap"
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

func init() {
	caddy.RegisterModule(Middleware{})
	httpcaddyfile.RegisterHandlerDirective("tzh3_lookup", parseCaddyfile)
}

// Middleware answers /lookup, /cell and /zones requests from a TZH3 index
// held in a local or remote bucket.
type Middleware struct {
	Bucket  string         `json:"bucket"`
	Key     string         `json:"key"`
	Refresh caddy.Duration `json:"refresh,omitempty"`
	logger  *zap.Logger
	server  *tzh3.Server
	cancel  context.CancelFunc
}

// CaddyModule returns the Caddy module information.
func (Middleware) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID:  "http.handlers.tzh3_lookup",
		New: func() caddy.Module { return new(Middleware) },
	}
}

func (m *Middleware) Provision(ctx caddy.Context) error {
	m.logger = ctx.Logger()
	logger := log.New(io.Discard, "", log.Ldate)
	server, err := tzh3.NewServer(m.Bucket, m.Key, logger, time.Duration(m.Refresh))
	if err != nil {
		return err
	}
	m.server = server
	loadCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	server.Start(loadCtx)
	return nil
}

func (m *Middleware) Cleanup() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

func (m *Middleware) Validate() error {
	if m.Key == "" {
		return fmt.Errorf("no key")
	}
	if m.Refresh < 0 {
		return fmt.Errorf("negative refresh")
	}
	return nil
}

func (m Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request, next caddyhttp.Handler) error {
	start := time.Now()
	statusCode, headers, body := m.server.Get(r.Context(), r.URL.Path)
	for k, v := range headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(statusCode)
	w.Write(body)
	m.logger.Info("response", zap.Int("status", statusCode), zap.String("path", r.URL.Path), zap.Duration("duration", time.Since(start)))

	return next.ServeHTTP(w, r)
}

func (m *Middleware) UnmarshalCaddyfile(d *caddyfile.Dispenser) error {
	for d.Next() {
		for nesting := d.Nesting(); d.NextBlock(nesting); {
			switch d.Val() {
			case "bucket":
				if !d.Args(&m.Bucket) {
					return d.ArgErr()
				}
			case "key":
				if !d.Args(&m.Key) {
					return d.ArgErr()
				}
			case "refresh":
				var refresh string
				if !d.Args(&refresh) {
					return d.ArgErr()
				}
				dur, err := caddy.ParseDuration(refresh)
				if err != nil {
					return d.Errf("invalid refresh duration %q: %v", refresh, err)
				}
				m.Refresh = caddy.Duration(dur)
			default:
				return d.Errf("unrecognized subdirective %s", d.Val())
			}
		}
	}
	return nil
}

func parseCaddyfile(h httpcaddyfile.Helper) (caddyhttp.MiddlewareHandler, error) {
	var m Middleware
	err := m.UnmarshalCaddyfile(h.Dispenser)
	return m, err
}

var (
	_ caddy.Provisioner           = (*Middleware)(nil)
	_ caddy.Validator             = (*Middleware)(nil)
	_ caddy.CleanerUpper          = (*Middleware)(nil)
	_ caddyhttp.MiddlewareHandler = (*Middleware)(nil)
	_ caddyfile.Unmarshaler       = (*Middleware)(nil)
)
