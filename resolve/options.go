package resolve

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dnsscience/resolve/internal/sysconf"
	"gopkg.in/yaml.v3"
)

// Family selects which address record type ResolveAddresses asks for.
type Family int

const (
	// FamilyUnspecified asks for both A and AAAA records.
	FamilyUnspecified Family = iota
	FamilyIPv4
	FamilyIPv6
)

// ServerEndpoint is one configured recursive name server, dialed as
// host:port for both the UDP and TCP exchanges.
type ServerEndpoint struct {
	Host string
	Port int
}

// String renders e in net.Dial's address:port form.
func (e ServerEndpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// TraceEvent describes one per-server attempt, for callers that set
// Options.Trace. It carries just enough to log or meter an attempt without
// the resolver importing a logging library itself.
type TraceEvent struct {
	Name      string
	Server    ServerEndpoint
	Transport string // "udp" or "tcp"
	Err       error  // nil on success
}

// Options configures a Resolver. Servers must be non-empty; the other
// fields are optional. UseHostsFile is accepted and stored but never
// consulted — there is no hosts-file override implementation, matching
// the explicit open question this carries over from the source it was
// distilled from.
type Options struct {
	Servers       []ServerEndpoint
	DefaultDomain string
	SearchDomains []string
	UseHostsFile  bool

	// Trace, if set, is invoked once per server tried, after that server's
	// exchange succeeds or fails. When a truncated UDP reply leads to a TCP
	// fallback, the single event reports the TCP exchange; the UDP exchange
	// gets no event of its own. It must not block or retain the event past
	// the call.
	Trace func(TraceEvent)

	// BatchQPS caps how many new queries per second ResolveAllAddresses
	// starts across its whole call, independent of its concurrency
	// argument. 0 disables throttling.
	BatchQPS float64
}

func (o Options) validate() error {
	if len(o.Servers) == 0 {
		return fmt.Errorf("%w: Options.Servers must be non-empty", ErrArgument)
	}
	return nil
}

// DiscoverOptions is the platform collaborator contract: it builds an
// Options value from the system's standing DNS configuration. On
// Unix-like systems that means /etc/resolv.conf via internal/sysconf; it
// returns sysconf.ErrPlatformUnsupported wherever that source doesn't
// exist. The resolver core has no dependency on this function succeeding;
// Default() is the only caller.
func DiscoverOptions() (Options, error) {
	cfg, err := sysconf.Load()
	if err != nil {
		return Options{}, err
	}

	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		port = 53
	}

	servers := make([]ServerEndpoint, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, ServerEndpoint{Host: s, Port: port})
	}
	return Options{
		Servers:       servers,
		DefaultDomain: cfg.DefaultDomain,
		SearchDomains: cfg.SearchDomains,
	}, nil
}

// optionsFile is the flat YAML document shape LoadOptionsFile reads.
type optionsFile struct {
	Servers []struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"servers"`
	DefaultDomain string   `yaml:"default_domain"`
	SearchDomains []string `yaml:"search_domains"`
	UseHostsFile  bool     `yaml:"use_hosts_file"`
}

// LoadOptionsFile reads a YAML file at path into an Options value, letting
// an application pin a server list without going through the platform
// collaborator.
func LoadOptionsFile(path string) (Options, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Options{}, err
	}

	var f optionsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Options{}, fmt.Errorf("resolve: parsing %s: %w", path, err)
	}

	opts := Options{
		DefaultDomain: f.DefaultDomain,
		SearchDomains: f.SearchDomains,
		UseHostsFile:  f.UseHostsFile,
	}
	for _, s := range f.Servers {
		port := s.Port
		if port == 0 {
			port = 53
		}
		opts.Servers = append(opts.Servers, ServerEndpoint{Host: s.Host, Port: port})
	}
	return opts, nil
}
