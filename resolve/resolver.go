// Package resolve is the public surface of a stub DNS resolver: it speaks
// RFC 1035/2782 to a configured list of recursive name servers over UDP
// with TCP fallback on truncation, follows CNAME chains, and caches
// positive and negative results per RFC 2308. It embeds in an application
// as a drop-in replacement for the platform's stub resolver.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dnsscience/resolve/internal/answer"
	"github.com/dnsscience/resolve/internal/cancelgate"
	"github.com/dnsscience/resolve/internal/dnswire"
	"github.com/dnsscience/resolve/internal/metrics"
	"github.com/dnsscience/resolve/internal/pool"
	"github.com/dnsscience/resolve/internal/randtx"
	"github.com/dnsscience/resolve/internal/resultcache"
	"github.com/dnsscience/resolve/internal/transport"
)

const maxNameLength = 253

// Resolver resolves names against a fixed, ordered list of configured
// servers. It owns an immutable options value, a thread-safe result
// cache, a cancellation gate shared by every in-flight call, and a
// configurable per-call timeout. Create one with New/FromServers/
// FromServer/Default and dispose of it explicitly with Close.
type Resolver struct {
	options Options
	cache   *resultcache.Cache
	gate    *cancelgate.Gate

	timeout atomic.Int64 // time.Duration; 0 means no timeout
	closed  atomic.Bool
}

// New creates a Resolver from a fully populated Options value.
func New(options Options) (*Resolver, error) {
	if err := options.validate(); err != nil {
		return nil, err
	}
	return &Resolver{
		options: options,
		cache:   resultcache.New(),
		gate:    cancelgate.New(),
	}, nil
}

// FromServers creates a Resolver configured with servers and no other
// options.
func FromServers(servers []ServerEndpoint) (*Resolver, error) {
	return New(Options{Servers: servers})
}

// FromServer creates a Resolver configured with a single server.
func FromServer(server ServerEndpoint) (*Resolver, error) {
	return FromServers([]ServerEndpoint{server})
}

// Default creates a Resolver using the platform-supplied DNS
// configuration (see DiscoverOptions).
func Default() (*Resolver, error) {
	opts, err := DiscoverOptions()
	if err != nil {
		return nil, err
	}
	return New(opts)
}

// SetTimeout sets the per-call timeout applied to every resolve operation
// started after this call returns. A timeout of 0 means no timeout (the
// "infinite" sentinel); a negative duration is a programmer error and is
// clamped to 0.
func (r *Resolver) SetTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	r.timeout.Store(int64(d))
}

// CancelAllPending cancels every call currently in flight on r without
// affecting calls started afterward.
func (r *Resolver) CancelAllPending() {
	r.gate.CancelAll()
}

// Close disposes of r, cancelling every in-flight call. It is idempotent.
func (r *Resolver) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	r.gate.Close()
	return nil
}

// link composes this call's cancellation source from the caller's
// context, the resolver-scoped gate, and the resolver's configured
// timeout, per the discrimination rule in internal/cancelgate.
func (r *Resolver) link(ctx context.Context) (context.Context, func()) {
	timeout := time.Duration(r.timeout.Load())
	return cancelgate.Link(ctx, r.gate.Context(), timeout)
}

// translateWaitErr converts a linked context's done state into the public
// ErrTimeout/ErrCancelled sentinels.
func translateWaitErr(ctx context.Context) error {
	if cancelgate.Cause(ctx) == cancelgate.ErrTimeoutCause {
		return ErrTimeout
	}
	return ErrCancelled
}

func validateName(name string) error {
	if len(name) == 0 || len(name) > maxNameLength {
		return fmt.Errorf("%w: name length must be 1-%d, got %d", ErrArgument, maxNameLength, len(name))
	}
	return nil
}

// ResolveAddresses resolves name to its A and/or AAAA addresses, per
// family. FamilyUnspecified queries both A and AAAA and returns their
// union, A records first.
func (r *Resolver) ResolveAddresses(ctx context.Context, name string, family Family) ([]AddressResult, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if family != FamilyUnspecified && family != FamilyIPv4 && family != FamilyIPv6 {
		return nil, fmt.Errorf("%w: unrecognized family %d", ErrArgument, family)
	}

	start := time.Now()
	defer func() { metrics.ObserveQueryDuration("addresses", time.Since(start)) }()

	var qtypes []uint16
	switch family {
	case FamilyIPv4:
		qtypes = []uint16{dnswire.TypeA}
	case FamilyIPv6:
		qtypes = []uint16{dnswire.TypeAAAA}
	default:
		qtypes = []uint16{dnswire.TypeA, dnswire.TypeAAAA}
	}

	var out []AddressResult
	for _, qtype := range qtypes {
		results, err := r.resolveAddressesOne(ctx, name, qtype)
		if err != nil {
			return nil, err
		}
		out = append(out, results...)
	}
	return out, nil
}

func (r *Resolver) resolveAddressesOne(ctx context.Context, name string, qtype uint16) ([]AddressResult, error) {
	if got, ok := resultcache.TryGetPositive[AddressResult](r.cache, name, qtype); ok {
		metrics.CacheHit()
		return got, nil
	}
	metrics.CacheMiss()

	var results []AddressResult
	err := r.runServerLoop(ctx, name, qtype, func(outerMsg []byte, resp answer.Response) {
		if handleNegative[AddressResult](r.cache, outerMsg, resp, name, qtype) {
			results = nil
			return
		}
		results = answer.Addresses(outerMsg, resp, name, qtype)
		cacheResponse(r.cache, resp, name, qtype, results)
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ResolveService resolves SRV records for name, with any A/AAAA glue the
// server supplied in the additional section attached to each result.
func (r *Resolver) ResolveService(ctx context.Context, name string) ([]ServiceResult, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { metrics.ObserveQueryDuration("service", time.Since(start)) }()

	if got, ok := resultcache.TryGetPositive[ServiceResult](r.cache, name, dnswire.TypeSRV); ok {
		metrics.CacheHit()
		return got, nil
	}
	metrics.CacheMiss()

	var results []ServiceResult
	err := r.runServerLoop(ctx, name, dnswire.TypeSRV, func(outerMsg []byte, resp answer.Response) {
		if handleNegative[ServiceResult](r.cache, outerMsg, resp, name, dnswire.TypeSRV) {
			results = nil
			return
		}
		results = answer.Services(outerMsg, resp)
		cacheResponse(r.cache, resp, name, dnswire.TypeSRV, results)
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ResolveText resolves TXT records for name.
func (r *Resolver) ResolveText(ctx context.Context, name string) ([]TxtResult, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { metrics.ObserveQueryDuration("text", time.Since(start)) }()

	if got, ok := resultcache.TryGetPositive[TxtResult](r.cache, name, dnswire.TypeTXT); ok {
		metrics.CacheHit()
		return got, nil
	}
	metrics.CacheMiss()

	var results []TxtResult
	err := r.runServerLoop(ctx, name, dnswire.TypeTXT, func(outerMsg []byte, resp answer.Response) {
		if handleNegative[TxtResult](r.cache, outerMsg, resp, name, dnswire.TypeTXT) {
			results = nil
			return
		}
		results = answer.Text(resp)
		cacheResponse(r.cache, resp, name, dnswire.TypeTXT, results)
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// handleNegative applies RFC 2308 negative-caching rules to resp as the
// outcome of a (name, qtype) query, reporting whether resp was negative at
// all. NODATA and NXDOMAIN cache at different scope: NODATA caches an
// empty positive entry under (name, qtype) — scoped to the type that was
// actually queried — while NXDOMAIN caches a name-wide negative entry that
// refutes every type. Caching NODATA in the name-wide negative map would
// wrongly shadow a different, existing record type for the same name.
func handleNegative[T any](cache *resultcache.Cache, outerMsg []byte, resp answer.Response, name string, qtype uint16) bool {
	switch kind, ttl, hasTTL := answer.ClassifyNegative(outerMsg, resp); kind {
	case answer.NegativeNoData:
		if hasTTL {
			resultcache.TryAdd[T](cache, name, qtype, resp.StartedAt.Add(ttl), []T{})
		}
		return true
	case answer.NegativeNXDomain:
		if hasTTL {
			cache.TryAddNonexistent(name, resp.StartedAt.Add(ttl))
		}
		return true
	default:
		return false
	}
}

// cacheResponse stores results under (name, qtype) with an expiry equal to
// the minimum TTL across every record the response carried. A response
// with no records at all (answers, authorities, or additionals) has no
// well-defined minimum and is never cached, matching this edge case in
// the data model.
func cacheResponse[T any](cache *resultcache.Cache, resp answer.Response, name string, qtype uint16, results []T) {
	ttl, ok := minTTL(resp)
	if !ok {
		return
	}
	resultcache.TryAdd(cache, name, qtype, resp.StartedAt.Add(ttl), results)
}

func minTTL(resp answer.Response) (time.Duration, bool) {
	var min uint32
	found := false
	consider := func(rrs []dnswire.ResourceRecord) {
		for _, rr := range rrs {
			if !found || rr.TTL < min {
				min = rr.TTL
				found = true
			}
		}
	}
	consider(resp.Answers)
	consider(resp.Authorities)
	consider(resp.Additionals)
	if !found {
		return 0, false
	}
	return time.Duration(min) * time.Second, true
}

// runServerLoop drives the per-server iteration of the query engine (C4):
// it builds one question, exchanges it against each configured server in
// turn (UDP, falling back to TCP on truncation), and decodes whatever
// answer comes back. A non-NoError response is discarded and the next
// server is tried; onResponse is only invoked for the response that
// actually ends the call — either the first NoError response, or, if none
// of the configured servers returns one, the last server's response — so
// an intermediate server's negative answer never reaches the cache. The
// response whose turn it is to be handed off is decoded and passed to
// onResponse while its backing buffer is still live, since CNAME/SRV/SOA
// RDATA may carry compression pointers back into it that only resolve
// against the intact buffer. onResponse is expected to build owned
// (copied) result values and assign them into variables captured from its
// enclosing call.
//
// A protocol error, a timeout, or a cancellation aborts immediately. A udp
// i/o error moves on to the next server; a tcp i/o error (only reachable
// after a truncated udp reply) is terminal for this call, matching the
// asymmetric retry policy of the error-handling design.
func (r *Resolver) runServerLoop(ctx context.Context, name string, qtype uint16, onResponse func(outerMsg []byte, resp answer.Response)) error {
	if r.closed.Load() {
		return ErrCancelled
	}
	if len(r.options.Servers) == 0 {
		return fmt.Errorf("%w: no servers configured", ErrArgument)
	}

	linked, release := r.link(ctx)
	defer release()

	var lastErr error
	anyResponse := false

	for i, server := range r.options.Servers {
		addr := server.String()
		startedAt := time.Now()

		id := randtx.TransactionID()
		queryBuf := pool.GetSmallBuffer()
		w := dnswire.NewWriter(queryBuf)
		built := w.WriteHeader(dnswire.Header{ID: id, RD: true, QDCount: 1}) &&
			w.WriteQuestion(dnswire.Question{Name: name, Type: qtype, Class: dnswire.ClassIN})
		if !built {
			pool.PutSmallBuffer(queryBuf)
			return fmt.Errorf("%w: query for %s does not fit the outbound buffer", ErrProtocol, name)
		}
		query := append([]byte(nil), w.Bytes()...)
		pool.PutSmallBuffer(queryBuf)

		resp, transportName, err := exchangeWithFallback(linked, addr, query, id)
		if err != nil {
			r.traceAttempt(name, server, transportName, err)
			switch {
			case errors.Is(err, ErrProtocol), errors.Is(err, ErrTimeout), errors.Is(err, ErrCancelled):
				return err
			case transportName == "tcp":
				return err // tcp i/o failure is terminal for this call
			default:
				lastErr = err
				continue
			}
		}
		r.traceAttempt(name, server, transportName, nil)

		decoded, outerMsg, derr := decodeResponse(resp, name, qtype)
		if derr != nil {
			resp.Release()
			return derr
		}
		decoded.StartedAt = startedAt
		anyResponse = true

		isLastServer := i == len(r.options.Servers)-1
		if decoded.Header.RCode == dnswire.RCodeNoError || isLastServer {
			onResponse(outerMsg, decoded)
		}
		resp.Release()

		if decoded.Header.RCode == dnswire.RCodeNoError {
			return nil
		}
	}

	if !anyResponse {
		return lastErr
	}
	return nil
}

func (r *Resolver) traceAttempt(name string, server ServerEndpoint, transportName string, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrProtocol):
		outcome = "protocol_error"
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
	case errors.Is(err, ErrCancelled):
		outcome = "cancelled"
	default:
		outcome = "io_error"
	}
	metrics.ServerQueryOutcome(transportName, outcome)
	if r.options.Trace != nil {
		r.options.Trace(TraceEvent{Name: name, Server: server, Transport: transportName, Err: err})
	}
}

// exchangeWithFallback performs one UDP exchange against addr, falling
// back to TCP if the reply is truncated.
func exchangeWithFallback(ctx context.Context, addr string, query []byte, id uint16) (*transport.Response, string, error) {
	udpResp, err := transport.ExchangeUDP(ctx, addr, query, id)
	if err != nil {
		return nil, "udp", classifyTransportErr(ctx, err)
	}
	if !udpResp.Header.TC {
		return udpResp, "udp", nil
	}

	udpResp.Release()
	tcpResp, err := transport.ExchangeTCP(ctx, addr, query, id)
	if err != nil {
		return nil, "tcp", classifyTransportErr(ctx, err)
	}
	return tcpResp, "tcp", nil
}

// classifyTransportErr maps an internal/transport or internal/dnswire
// error to the public sentinels. If ctx is already done, the real cause
// is the linked cancellation source, not whatever error the blocked
// socket call happened to return when it unblocked.
func classifyTransportErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return translateWaitErr(ctx)
	}
	if errors.Is(err, dnswire.ErrProtocol) {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return fmt.Errorf("%w: %v", ErrIO, err)
}

// decodeResponse reads the question and the three record sections out of
// resp, validating the header's question count and the echoed question
// against what was sent. The returned answer.Response's ResourceRecord
// slices alias resp's backing buffer — callers must finish everything
// that touches them (including passing outerMsg to answer.Addresses/
// Services/Text/ClassifyNegative) before calling resp.Release().
func decodeResponse(resp *transport.Response, name string, qtype uint16) (answer.Response, []byte, error) {
	h := resp.Header
	r := resp.Reader
	outerMsg := r.Bytes()

	if h.QDCount != 1 {
		return answer.Response{}, nil, fmt.Errorf("%w: expected 1 question, got %d", ErrProtocol, h.QDCount)
	}
	q, err := r.ReadQuestion()
	if err != nil {
		return answer.Response{}, nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if !strings.EqualFold(q.Name, name) || q.Type != qtype || q.Class != dnswire.ClassIN {
		return answer.Response{}, nil, fmt.Errorf("%w: echoed question %s/%d/%d does not match query %s/%d/%d", ErrProtocol, q.Name, q.Type, q.Class, name, qtype, dnswire.ClassIN)
	}

	readSection := func(n uint16) ([]dnswire.ResourceRecord, error) {
		out := make([]dnswire.ResourceRecord, 0, n)
		for i := uint16(0); i < n; i++ {
			rr, err := r.ReadResourceRecord()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
			}
			out = append(out, rr)
		}
		return out, nil
	}

	answers, err := readSection(h.ANCount)
	if err != nil {
		return answer.Response{}, nil, err
	}
	authorities, err := readSection(h.NSCount)
	if err != nil {
		return answer.Response{}, nil, err
	}
	additionals, err := readSection(h.ARCount)
	if err != nil {
		return answer.Response{}, nil, err
	}

	return answer.Response{
		Header:      h,
		Answers:     answers,
		Authorities: authorities,
		Additionals: additionals,
	}, outerMsg, nil
}
