// Package ifservice implements the per-interface starters the C4 generic
// supervision engine drives: DHCPv4 client, PPPoE session, IPv6 RA/PD,
// firewall rules, TCPMSS clamp, and NAT/fwmark policy routing (C11).
//
// Every starter here returns promptly from Start and performs teardown on
// its own goroutine: it watches the handle's StopRequested channel, undoes
// whatever it programmed, and then transitions the handle to watch.Stopped
// itself. The supervisor blocks in AwaitStopped across a reconfigure, so a
// starter that forgets this step wedges the whole config-apply path.
package ifservice

import "time"

// Status is the shared status payload across all six starter kinds. Fields
// that don't apply to a given kind are left zero.
type Status struct {
	// Up is true once the starter has successfully programmed its state
	// (lease bound, session connected, rules applied).
	Up bool
	// LastError holds the most recent failure, if any; nil once Up.
	LastError error
	// ChangedAt is the last time Up or LastError transitioned.
	ChangedAt time.Time

	// Address is the primary address obtained or programmed (DHCP lease,
	// PPPoE local address, RA-advertised prefix).
	Address string
	// Gateway is the gateway/peer address, where applicable (DHCP router,
	// PPPoE peer). The IPv6 RA starter stores its DHCPv6-PD delegated
	// prefix here.
	Gateway string
	// ExpiresAt is the lease/prefix expiry, where applicable.
	ExpiresAt time.Time
}
