// Package discovery advertises the rule service on the local network and
// finds advertised instances.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_tripwire._tcp"

// Instance is one advertised rule service.
type Instance struct {
	Name string
	Host string
	Addr string // host:port, IPv4 when available
	Info []string
}

// URL returns the instance's base HTTP URL.
func (i Instance) URL() string { return "http://" + i.Addr }

// Advertise announces the service on port until the returned server is shut
// down.
func Advertise(instance string, port int) (*mdns.Server, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}

	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, []string{"tripwire rule service", "path=/api"})
	if err != nil {
		return nil, fmt.Errorf("create mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("start mdns server: %w", err)
	}
	slog.Info("advertising over mdns", "service", ServiceType, "instance", instance, "port", port)
	return server, nil
}

// Browse collects instances that answer within timeout.
func Browse(ctx context.Context, timeout time.Duration) ([]Instance, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	var found []Instance
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if inst, ok := fromEntry(e); ok {
				found = append(found, inst)
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.QueryContext(ctx, params)
	close(entries)
	<-done
	if err != nil {
		return nil, fmt.Errorf("mdns query: %w", err)
	}
	return dedupe(found), nil
}

func fromEntry(e *mdns.ServiceEntry) (Instance, bool) {
	if e == nil || e.Port == 0 || !strings.Contains(e.Name, ServiceType) {
		return Instance{}, false
	}
	host := e.Host
	switch {
	case e.AddrV4 != nil:
		host = e.AddrV4.String()
	case e.AddrV6 != nil:
		host = "[" + e.AddrV6.String() + "]"
	}
	if host == "" {
		return Instance{}, false
	}
	name := strings.TrimSuffix(e.Name, "."+ServiceType+".local.")
	return Instance{
		Name: name,
		Host: strings.TrimSuffix(e.Host, "."),
		Addr: fmt.Sprintf("%s:%d", host, e.Port),
		Info: e.InfoFields,
	}, true
}

func dedupe(in []Instance) []Instance {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, inst := range in {
		if seen[inst.Addr] {
			continue
		}
		seen[inst.Addr] = true
		out = append(out, inst)
	}
	return out
}
