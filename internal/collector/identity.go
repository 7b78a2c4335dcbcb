// Identity reader: gathers hostname, primary addresses, OS, hardware and
// installed software. Static facts are cached for the inventory refresh
// period; addresses and hostname are read on every call.
package collector

import (
	"context"
	"net/netip"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shirou/gopsutil/v3/host"
	psnet "github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"

	"github.com/Guliveer/devtrack-agent/internal/models"
	"github.com/Guliveer/devtrack-agent/internal/platform"
)

const staticFactsKey = "host"

// staticFacts are identity fields that only change across reboots or
// software installs.
type staticFacts struct {
	os       models.OSInfo
	hardware platform.Hardware
	software []models.Software
	bootTime *int64
}

// IdentitySampler implements IdentityReader.
type IdentitySampler struct {
	platform platform.Platform
	logger   *zap.Logger
	static   *expirable.LRU[string, staticFacts]
	refresh  sync.Mutex
}

// NewIdentitySampler creates an identity reader. Static facts are re-read
// once they are older than ttl.
func NewIdentitySampler(p platform.Platform, ttl time.Duration, logger *zap.Logger) *IdentitySampler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentitySampler{
		platform: p,
		logger:   logger,
		static:   expirable.NewLRU[string, staticFacts](1, nil, ttl),
	}
}

// Identity returns the current host identity.
func (s *IdentitySampler) Identity(ctx context.Context) models.SystemIdentity {
	facts := s.staticFacts(ctx)

	id := models.SystemIdentity{
		Hostname:           readHostname(ctx),
		IPAddress:          models.Unknown,
		MACAddress:         models.Unknown,
		OSInfo:             facts.os,
		SystemManufacturer: models.OrUnknown(facts.hardware.Manufacturer),
		SystemModel:        models.OrUnknown(facts.hardware.Model),
		SerialNumber:       models.OrUnknown(facts.hardware.Serial),
		BootTime:           facts.bootTime,
		InstalledSoftware:  facts.software,
	}

	if ifaces, err := psnet.InterfacesWithContext(ctx); err == nil {
		ip, mac := pickPrimary(ifaces)
		id.IPAddress = models.OrUnknown(ip)
		id.MACAddress = models.OrUnknown(mac)
	} else {
		s.logger.Debug("Failed to list network interfaces", zap.Error(err))
	}
	return id
}

func (s *IdentitySampler) staticFacts(ctx context.Context) staticFacts {
	if facts, ok := s.static.Get(staticFactsKey); ok {
		return facts
	}

	// One refresh at a time; a concurrent caller waits and reuses it.
	s.refresh.Lock()
	defer s.refresh.Unlock()
	if facts, ok := s.static.Get(staticFactsKey); ok {
		return facts
	}

	facts := staticFacts{os: readOSInfo(ctx)}

	hw, err := s.platform.Hardware(ctx)
	if err != nil {
		s.logger.Debug("Hardware identity unavailable", zap.String("platform", s.platform.Name()), zap.Error(err))
	}
	facts.hardware = hw

	software, err := s.platform.InstalledSoftware(ctx)
	if err != nil {
		s.logger.Debug("Software inventory unavailable", zap.String("platform", s.platform.Name()), zap.Error(err))
	}
	if software == nil {
		software = []models.Software{}
	}
	facts.software = software

	if bt, err := host.BootTimeWithContext(ctx); err == nil {
		v := int64(bt)
		facts.bootTime = &v
	}

	// Do not cache a result cut short by cancellation.
	if ctx.Err() == nil {
		s.static.Add(staticFactsKey, facts)
		s.logger.Debug("Refreshed static host facts", zap.Int("software", len(software)))
	}
	return facts
}

func readHostname(ctx context.Context) string {
	if info, err := host.InfoWithContext(ctx); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	if name, err := os.Hostname(); err == nil {
		return models.OrUnknown(name)
	}
	return models.Unknown
}

// pickPrimary returns the IPv4 address and MAC of the first interface that
// is up, not loopback, and has an IPv4 address. An interface with only IPv6
// addresses is used when no IPv4 one exists.
func pickPrimary(ifaces psnet.InterfaceStatList) (ip, mac string) {
	var v6IP, v6MAC string
	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			addr, ok := parseInterfaceAddr(a.Addr)
			if !ok || addr.IsLoopback() || addr.IsLinkLocalUnicast() {
				continue
			}
			if addr.Is4() {
				return addr.String(), iface.HardwareAddr
			}
			if v6IP == "" {
				v6IP, v6MAC = addr.String(), iface.HardwareAddr
			}
		}
	}
	return v6IP, v6MAC
}

// parseInterfaceAddr accepts both CIDR ("10.0.0.2/24") and bare addresses.
func parseInterfaceAddr(s string) (netip.Addr, bool) {
	if prefix, err := netip.ParsePrefix(s); err == nil {
		return prefix.Addr(), true
	}
	addr, err := netip.ParseAddr(s)
	return addr, err == nil
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}
