package uri

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/feral-file/card-registry/internal/adapter"
	"github.com/feral-file/card-registry/internal/logger"
)

// ErrNoGateway is returned when no configured gateway serves the content
var ErrNoGateway = errors.New("no working gateway")

// Config holds configuration for the URI resolver
type Config struct {
	// IPFSGateways is the list of IPFS gateways to try, e.g. https://ipfs.io
	IPFSGateways []string
	// ArweaveGateways is the list of Arweave gateways to try, e.g. https://arweave.net
	ArweaveGateways []string
}

// Resolver defines the interface for resolving token metadata URIs
//
//go:generate mockgen -source=resolver.go -destination=../mocks/uri_resolver.go -package=mocks -mock_names=Resolver=MockURIResolver
type Resolver interface {
	// Resolve maps ipfs:// and ar:// URIs to the first gateway URL that answers a HEAD
	// request with 200. Any other URI is returned unchanged.
	Resolve(ctx context.Context, uri string) (string, error)
}

type resolver struct {
	httpClient adapter.HTTPClient
	config     *Config
}

func NewResolver(httpClient adapter.HTTPClient, config *Config) Resolver {
	return &resolver{
		httpClient: httpClient,
		config:     config,
	}
}

func (r *resolver) Resolve(ctx context.Context, uri string) (string, error) {
	if cid, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		cid = strings.TrimPrefix(cid, "ipfs/")
		return r.firstReachable(ctx, "IPFS", gatewayURLs(r.config.IPFSGateways, "ipfs/"+cid))
	}

	if txID, ok := strings.CutPrefix(uri, "ar://"); ok {
		return r.firstReachable(ctx, "Arweave", gatewayURLs(r.config.ArweaveGateways, txID))
	}

	return uri, nil
}

func gatewayURLs(gateways []string, path string) []string {
	urls := make([]string, 0, len(gateways))
	for _, gw := range gateways {
		urls = append(urls, strings.TrimRight(gw, "/")+"/"+path)
	}
	return urls
}

// firstReachable checks every candidate in parallel and returns the first one answering 200.
// Outstanding checks are cancelled once a winner is found.
func (r *resolver) firstReachable(ctx context.Context, network string, candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no %s gateways configured", ErrNoGateway, network)
	}

	logger.DebugCtx(ctx, "Probing gateways", zap.String("network", network), zap.Int("gateways", len(candidates)))

	headCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan string, len(candidates))
	var wg sync.WaitGroup

	for _, url := range candidates {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()

			resp, err := r.httpClient.Head(headCtx, url)
			if err != nil {
				logger.DebugCtx(ctx, "Gateway check failed", zap.String("url", url), zap.Error(err))
				return
			}
			if err := resp.Body.Close(); err != nil {
				logger.WarnCtx(ctx, "failed to close response body", zap.Error(err), zap.String("url", url))
			}

			if resp.StatusCode == http.StatusOK {
				found <- url
			}
		}(url)
	}

	go func() {
		wg.Wait()
		close(found)
	}()

	if url, ok := <-found; ok {
		logger.InfoCtx(ctx, "Found working gateway", zap.String("network", network), zap.String("url", url))
		return url, nil
	}

	return "", fmt.Errorf("%w for %s content", ErrNoGateway, network)
}
