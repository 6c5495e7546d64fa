// Package networking wraps netlink lookups and route/rule construction
// shared by the C11 interface-service starters: resolving an interface by
// name, listing every interface on the host, and building the
// default/blackhole routes and policy-routing rule a RoutingConfig starter
// installs for one interface.
package networking
