package ngrok

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	ngrok "golang.ngrok.com/ngrok"
	"golang.ngrok.com/ngrok/config"
)

// Options describe the public endpoint put in front of the local status server.
type Options struct {
	LocalAddr     string
	Authtoken     string
	Region        string
	Domain        string
	BasicAuthUser string
	BasicAuthPass string
}

func (o Options) endpoint() config.Tunnel {
	var opts []config.HTTPEndpointOption
	if o.Domain != "" {
		opts = append(opts, config.WithDomain(o.Domain))
	}
	if o.BasicAuthUser != "" && o.BasicAuthPass != "" {
		opts = append(opts, config.WithBasicAuth(o.BasicAuthUser, o.BasicAuthPass))
	}
	return config.HTTPEndpoint(opts...)
}

func (o Options) connect() []ngrok.ConnectOption {
	var opts []ngrok.ConnectOption
	switch {
	case o.Authtoken != "":
		opts = append(opts, ngrok.WithAuthtoken(o.Authtoken))
	case os.Getenv("NGROK_AUTHTOKEN") != "":
		opts = append(opts, ngrok.WithAuthtokenFromEnv())
	}
	if o.Region != "" {
		opts = append(opts, ngrok.WithRegion(o.Region))
	}
	return opts
}

// Tunnel forwards a public ngrok URL to the status server.
type Tunnel struct {
	forwarder ngrok.Forwarder
	logger    *slog.Logger
}

func Start(ctx context.Context, opts Options, logger *slog.Logger) (*Tunnel, error) {
	if opts.LocalAddr == "" {
		return nil, errors.New("ngrok local address is required")
	}
	backend, err := url.Parse(opts.LocalAddr)
	if err != nil {
		return nil, fmt.Errorf("parsing ngrok backend address: %w", err)
	}

	fwd, err := ngrok.ListenAndForward(ctx, backend, opts.endpoint(), opts.connect()...)
	if err != nil {
		return nil, fmt.Errorf("starting ngrok tunnel: %w", err)
	}

	logger.Info("ngrok tunnel established", slog.String("url", fwd.URL()), slog.String("backend", opts.LocalAddr))
	return &Tunnel{forwarder: fwd, logger: logger}, nil
}

func (t *Tunnel) URL() string {
	if t == nil || t.forwarder == nil {
		return ""
	}
	return t.forwarder.URL()
}

func (t *Tunnel) Close() error {
	if t == nil || t.forwarder == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.logger.Info("Closing ngrok tunnel")
	return t.forwarder.CloseWithContext(ctx)
}
