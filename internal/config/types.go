package config

import (
	"path/filepath"

	"github.com/veylan/routerd/internal/dnsrule"
	"github.com/veylan/routerd/internal/geosite"
)

// Config is the root of the persisted configuration file (C14).
type Config struct {
	// ConfigVersion is the configuration file version.
	ConfigVersion uint8 `toml:"config_version" json:"config_version"`
	// General holds daemon-wide settings.
	General *GeneralConfig `toml:"general"`
	// DNS holds the policy DNS resolver's settings, rule set, and GeoSite sources.
	DNS *DNSConfig `toml:"dns"`

	// DHCPClients are per-interface DHCPv4 client starters (C11).
	DHCPClients []*DHCPClientConfig `toml:"dhcp_client,omitempty" validate:"dive"`
	// PPPoEs are per-interface PPPoE session starters (C11).
	PPPoEs []*PPPoEConfig `toml:"pppoe,omitempty" validate:"dive"`
	// IPv6RAs are per-interface IPv6 RA/DHCPv6-PD starters (C11).
	IPv6RAs []*IPv6RAConfig `toml:"ipv6_ra,omitempty" validate:"dive"`
	// Firewalls are per-interface firewall rule starters (C11).
	Firewalls []*FirewallConfig `toml:"firewall,omitempty" validate:"dive"`
	// MSSClamps are per-interface TCPMSS clamp starters (C11).
	MSSClamps []*MSSClampConfig `toml:"mss_clamp,omitempty" validate:"dive"`
	// RoutingRules are per-interface NAT/fwmark policy routing starters (C11).
	RoutingRules []*RoutingConfig `toml:"routing,omitempty" validate:"dive"`

	_absConfigFilePath string
}

type GeneralConfig struct {
	// StateDir holds daemon runtime state: the GeoSite cache and per-kind config stores.
	StateDir string `toml:"state_dir" json:"state_dir" validate:"required"`
	// InterfaceMonitoringIntervalSeconds is the interval in seconds for interface
	// link-state monitoring (0 = disabled, default: 0).
	InterfaceMonitoringIntervalSeconds int `toml:"interface_monitoring_interval_seconds" json:"interface_monitoring_interval_seconds" validate:"gte=0"`
	// EnableAdminAPI runs the C13 admin HTTP surface (default: true when the
	// [general] table is absent; false when the table is present without it).
	EnableAdminAPI bool `toml:"enable_admin_api" json:"enable_admin_api"`
	// AdminBindAddr is the C13 admin HTTP surface's listen address, e.g.
	// "0.0.0.0:8080". Access is further restricted to private subnets by
	// PrivateSubnetOnly regardless of the bound address.
	AdminBindAddr string `toml:"admin_bind_addr" json:"admin_bind_addr" validate:"required"`
}

// DNSConfig configures the policy DNS resolver front-end (C7), its rule set
// (C5), and its GeoSite sources (C9).
type DNSConfig struct {
	// Enable runs the DNS resolver front-end (default: true when the [dns]
	// table is absent; false when the table is present without it).
	Enable bool `toml:"enable" json:"enable"`
	// ListenAddr is the DNS listen address (default: 127.0.0.1).
	ListenAddr string `toml:"listen_addr" json:"listen_addr" validate:"ip_or_empty"`
	// ListenPort is the DNS listen port (default: 53).
	ListenPort uint16 `toml:"listen_port" json:"listen_port" validate:"required,min=1"`
	// CacheMaxDomains is the LRU cache capacity, keyed by (domain, qtype) (default: 2048).
	CacheMaxDomains int `toml:"cache_max_domains" json:"cache_max_domains" validate:"min=0"`
	// GeoSiteCacheDir is the on-disk directory the GeoSite service persists bundles to.
	GeoSiteCacheDir string `toml:"geosite_cache_dir" json:"geosite_cache_dir" validate:"required"`
	// Rules is the ordered DNS rule set, persisted alongside the rest of the config
	// but also independently editable through the admin HTTP surface (C13).
	Rules []dnsrule.Config `toml:"rule,omitempty" json:"rules,omitempty" validate:"dive"`
	// GeoSiteSources lists the GeoSite bundles the GeoSite service (C9) fetches.
	GeoSiteSources []geosite.SourceConfig `toml:"geosite_source,omitempty" json:"geosite_sources,omitempty" validate:"dive"`
}

// DHCPClientConfig configures a DHCPv4 client starter (C11). IfaceName is
// the supervisor.Keyed store key.
type DHCPClientConfig struct {
	IfaceName string `toml:"iface_name" json:"iface_name" validate:"required"`
	Enable    bool   `toml:"enable" json:"enable"`
	// Hostname is sent in the DHCP request's option 12.
	Hostname string `toml:"hostname,omitempty" json:"hostname,omitempty"`
	// RetryIntervalSeconds is the delay between failed lease attempts (default: 10).
	RetryIntervalSeconds int `toml:"retry_interval_seconds" json:"retry_interval_seconds" validate:"min=1"`
}

func (c DHCPClientConfig) Key() string { return c.IfaceName }

// PPPoEConfig configures a PPPoE session starter (C11).
type PPPoEConfig struct {
	IfaceName string `toml:"iface_name" json:"iface_name" validate:"required"`
	Enable    bool   `toml:"enable" json:"enable"`
	Username  string `toml:"username" json:"username" validate:"required"`
	Password  string `toml:"password" json:"password" validate:"required"`
	// ServiceName is the PPPoE service-name tag (optional).
	ServiceName string `toml:"service_name,omitempty" json:"service_name,omitempty"`
	// MTU is the negotiated interface MTU (default: 1492).
	MTU int `toml:"mtu" json:"mtu" validate:"min=0,max=1500"`
}

func (c PPPoEConfig) Key() string { return c.IfaceName }

// IPv6RAConfig configures an IPv6 Router Advertisement listener and/or
// DHCPv6-PD client starter (C11). IfaceName is the WAN-side interface the
// starter listens/negotiates on.
type IPv6RAConfig struct {
	IfaceName string `toml:"iface_name" json:"iface_name" validate:"required"`
	Enable    bool   `toml:"enable" json:"enable"`
	// RequestPD runs DHCPv6-PD prefix delegation in addition to RA listening.
	RequestPD bool `toml:"request_pd" json:"request_pd"`
	// DelegateToInterfaces are LAN interfaces that receive a /64 slice of any delegated prefix.
	DelegateToInterfaces []string `toml:"delegate_to_interfaces,omitempty" json:"delegate_to_interfaces,omitempty"`
}

func (c IPv6RAConfig) Key() string { return c.IfaceName }

// FirewallConfig configures a declarative set of iptables rules applied to
// one interface (C11).
type FirewallConfig struct {
	IfaceName string `toml:"iface_name" json:"iface_name" validate:"required"`
	Enable    bool   `toml:"enable" json:"enable"`
	// Rules are iptables rules scoped to this interface. Available template
	// variable: {{iface}}.
	Rules []*IPTablesRule `toml:"rule,omitempty" json:"rules,omitempty" validate:"dive"`
}

func (c FirewallConfig) Key() string { return c.IfaceName }

// IPTablesRule is a single templated iptables rule.
type IPTablesRule struct {
	Table string   `toml:"table" json:"table" validate:"required"`
	Chain string   `toml:"chain" json:"chain" validate:"required"`
	Rule  []string `toml:"rule" json:"rule" validate:"required,min=1"`
}

// MSSClampConfig configures a TCPMSS clamp starter (C11).
type MSSClampConfig struct {
	IfaceName string `toml:"iface_name" json:"iface_name" validate:"required"`
	Enable    bool   `toml:"enable" json:"enable"`
	// ClampSize is the MSS value to clamp to (default: 1492).
	ClampSize int `toml:"clamp_size" json:"clamp_size" validate:"min=0,max=1500"`
}

func (c MSSClampConfig) Key() string { return c.IfaceName }

// RoutingConfig configures a NAT/fwmark policy routing starter (C11): the
// data-plane consumer that routes packets according to the marks C8
// publishes into the kernel flow-dns map.
type RoutingConfig struct {
	IfaceName string `toml:"iface_name" json:"iface_name" validate:"required"`
	Enable    bool   `toml:"enable" json:"enable"`
	// IPVersion selects the address family this routing table serves (4 or 6).
	IPVersion IpFamily `toml:"ip_version" json:"ip_version" validate:"required,oneof=4 6"`
	// FwMark is the fwmark this interface's policy route matches on.
	FwMark uint32 `toml:"fwmark" json:"fwmark" validate:"required,min=1"`
	// IPRouteTable is the routing table number packets with FwMark are sent to.
	IPRouteTable int `toml:"table" json:"table" validate:"required,min=1"`
	// IPRulePriority is the ip-rule priority for the fwmark match.
	IPRulePriority int `toml:"priority" json:"priority" validate:"required,min=1"`
	// Masquerade enables source NAT (MASQUERADE) for traffic leaving this interface.
	Masquerade bool `toml:"masquerade" json:"masquerade"`
}

func (c RoutingConfig) Key() string { return c.IfaceName }

// IpFamily is kept from the original schema: 4 or 6, used wherever a config
// section needs to pick an address family for netlink/iptables calls.
type IpFamily uint8

const (
	Ipv4 IpFamily = 4
	Ipv6 IpFamily = 6
)

func (c *Config) GetConfigDir() string {
	return filepath.Dir(c._absConfigFilePath)
}

// GetAbsStateDir resolves General.StateDir relative to the config file's
// directory, the same convention the original schema used for list output
// directories.
func (c *Config) GetAbsStateDir() string {
	if filepath.IsAbs(c.General.StateDir) {
		return c.General.StateDir
	}
	return filepath.Join(c.GetConfigDir(), c.General.StateDir)
}
