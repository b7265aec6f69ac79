package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	HueService    = "_hue._tcp"
	ElgatoService = "_elg._tcp"
)

// Service is one mDNS answer.
type Service struct {
	Name string
	Host string
	Addr string
	Port int
}

// HostPort returns the IPv4 address joined with the advertised port.
func (s Service) HostPort() string {
	return net.JoinHostPort(s.Addr, strconv.Itoa(s.Port))
}

// Browse queries the local network for service and collects answers until
// timeout elapses or ctx is canceled. Answers without an IPv4 address are
// dropped and duplicates are merged.
func Browse(ctx context.Context, service string, timeout time.Duration, logger *slog.Logger) ([]Service, error) {
	entries := make(chan *mdns.ServiceEntry, 10)
	errCh := make(chan error, 1)

	go func() {
		params := &mdns.QueryParam{
			Service:             service,
			Domain:              "local",
			Timeout:             timeout,
			Entries:             entries,
			DisableIPv6:         true,
			WantUnicastResponse: true,
		}
		errCh <- mdns.Query(params)
		close(entries)
	}()

	seen := make(map[string]bool)
	var found []Service
	for entry := range entries {
		if ctx.Err() != nil {
			// drain so the query goroutine can finish
			continue
		}
		if entry.AddrV4 == nil {
			continue
		}
		addr := entry.AddrV4.String()
		if seen[addr] {
			continue
		}
		seen[addr] = true

		logger.Debug("mdns answer", "service", service, "name", entry.Name, "addr", addr, "port", entry.Port)
		found = append(found, Service{
			Name: entry.Name,
			Host: entry.Host,
			Addr: addr,
			Port: entry.Port,
		})
	}

	if err := <-errCh; err != nil {
		return found, fmt.Errorf("mdns query %s: %w", service, err)
	}
	if err := ctx.Err(); err != nil {
		return found, err
	}
	return found, nil
}
