// Package sysconf implements Default()'s platform-supplied collaborator:
// it reads the system's standing DNS configuration so a Resolver can be
// constructed with zero arguments. On Unix-like systems that means parsing
// /etc/resolv.conf; other platforms get an explicit unsupported error
// rather than a guessed-at fallback.
package sysconf

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrPlatformUnsupported is returned by Load on a platform with no
// supported system configuration source.
var ErrPlatformUnsupported = errors.New("sysconf: unsupported platform")

// Config is the subset of /etc/resolv.conf this library acts on: the
// nameserver list (in file order) and the default port to reach them on,
// plus the domain/search lines carried into Options.DefaultDomain/
// SearchDomains (spec §9: parsed, never applied to a queried name by the
// core itself).
type Config struct {
	Servers       []string
	Port          string
	DefaultDomain string
	SearchDomains []string
}

const defaultResolvConfPath = "/etc/resolv.conf"

// Load reads the platform's DNS configuration. On Unix-like systems this
// parses /etc/resolv.conf: "nameserver", "domain", and "search" lines, per
// parseResolvConf below. "options" and everything else is ignored.
func Load() (Config, error) {
	f, err := os.Open(defaultResolvConfPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, ErrPlatformUnsupported
		}
		return Config{}, err
	}
	defer f.Close()
	return parseResolvConf(f)
}

// parseResolvConf reads RESOLVER(5)-format lines: "nameserver" (one server
// per line, with an optional "#port" suffix; Config holds a single Port, so
// the last such suffix in the file sets the port for every server, earlier
// ones included; a ":port" suffix is not recognized), "domain" (the last
// one wins, per resolv.conf(5)), and "search"
// (the last line replaces any earlier one, same precedence rule). Neither
// is applied to a queried name anywhere in this library; they are only
// carried through into Options for a caller that wants them.
func parseResolvConf(r io.Reader) (Config, error) {
	cfg := Config{Port: "53"}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "nameserver":
			addr := fields[1]
			if idx := strings.LastIndex(addr, "#"); idx > 0 {
				if port, err := strconv.Atoi(addr[idx+1:]); err == nil {
					cfg.Port = strconv.Itoa(port)
					addr = addr[:idx]
				}
			}
			cfg.Servers = append(cfg.Servers, addr)
		case "domain":
			cfg.DefaultDomain = fields[1]
		case "search":
			cfg.SearchDomains = append([]string(nil), fields[1:]...)
		}
	}
	if err := scanner.Err(); err != nil {
		return Config{}, err
	}
	if len(cfg.Servers) == 0 {
		return Config{}, errors.New("sysconf: no nameserver entries found")
	}
	return cfg, nil
}
