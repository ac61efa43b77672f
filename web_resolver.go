package dnsupdater

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// WebResolver constructs a resolver which uses external web services to look up a "public" IP address.
//
// Each serviceURL must speak http and return status "200 OK",
// with a valid IPv4 or IPv6 address as the first line of the response body.
// All other responses are considered an error.
//
// If only one serviceURL is given,
// then the resolver will simply return the response.
// If multiple are given,
// then the resolver will request from up to three of them and only return successfully if two non-error responses agreed on the IP.
// This approach is taken due to the sensitive nature of having control over DNS records.
//
// For clients which have both IPv4 and IPv6 capability,
// use a public IP service endpoint that prefers one or the other, e.g. https://ipv4.icanhazip.com/.
//
// The recommended approach is to run your own service over https.
func WebResolver(serviceURL ...string) (Resolver, error) {
	return WebResolverWithClient(nil, serviceURL...)
}

// WebResolverWithClient is like WebResolver but sends requests with httpClient.
// A nil httpClient gets a new client with no shared connection pool,
// which is released when the resolver is closed.
func WebResolverWithClient(httpClient *http.Client, serviceURL ...string) (Resolver, error) {
	if len(serviceURL) == 0 {
		return nil, errors.New("no external IP lookup services were provided")
	}
	var URLs []*url.URL
	for _, u := range serviceURL {
		pu, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("error parsing URL: %w", err)
		}
		if pu.Scheme != "http" && pu.Scheme != "https" {
			return nil, fmt.Errorf("unsupported URL scheme %q in %s", pu.Scheme, u)
		}
		URLs = append(URLs, pu)
	}
	if httpClient == nil {
		httpClient = cleanhttp.DefaultClient()
	}
	return &webResolver{httpClient: httpClient, serviceURLs: URLs}, nil
}

type webResolver struct {
	httpClient  *http.Client
	serviceURLs []*url.URL
}

// Resolve implements dnsupdater.Resolver.
func (wr *webResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	// IP lookup calls out to up to three of the public IP resolver urls.
	// With more than one url configured it only returns a nil error once two responses had matching IPs.
	// This approach has a number of benefits:
	// - faster responses
	// - less likely to be affected by service downtime
	// - safer from wrong results in the event of accidental caching
	// - safer from a single compromised service returning malicious results (assuming all supplied resolvers are https)
	//
	// todo: round-robin or randomize resolver selection. right now it's just using the first three.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		addr netip.Addr
		err  error
	}

	useCount := min(len(wr.serviceURLs), 3)
	needed := 2
	if useCount == 1 {
		needed = 1
	}
	results := make(chan result, useCount)

	var wg sync.WaitGroup
	wg.Add(useCount)
	for i := 0; i < useCount; i++ {
		u := wr.serviceURLs[i]
		go func() {
			defer wg.Done()
			r := result{}
			r.addr, r.err = wr.lookup(ctx, u)
			results <- r
		}()
	}
	go func() { wg.Wait(); close(results) }()

	var errs []error
	votes := make(map[netip.Addr]int, useCount)
	for r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		votes[r.addr]++
		if votes[r.addr] >= needed {
			return r.addr, nil
		}
	}
	if useCount-len(errs) < needed {
		return netip.Addr{}, fmt.Errorf("not enough resolvers responded without errors: %w", errors.Join(errs...))
	}
	return netip.Addr{}, errors.New("IP resolvers did not agree on our IP")
}

func (wr *webResolver) lookup(ctx context.Context, url *url.URL) (netip.Addr, error) {
	// 15 seconds is an eternity for the size of the request we're making,
	// but this ensures that all calls to resolve will eventually complete even if the caller's context never ends.
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := wr.httpClient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("http request to %s returned %s", url.Host, resp.Status)
	}

	scanner := bufio.NewReader(resp.Body)
	ipstring, _ := scanner.ReadString('\n')
	ip, err := netip.ParseAddr(strings.TrimSpace(ipstring))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing IP address from response body: %w", err)
	}
	return ip.Unmap(), nil
}

// Close releases idle connections held by the resolver's http client.
func (wr *webResolver) Close() error {
	wr.httpClient.CloseIdleConnections()
	return nil
}
