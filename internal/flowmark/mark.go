// Package flowmark defines the opaque tag attached to a resolved IP so the
// data plane can apply a routing policy to it.
package flowmark

// Mark is an opaque tag carried by a DNS rule and attached to every IP it
// resolves. The zero value is neutral: no kernel programming is required.
// Any non-zero value is actionable and is interpreted by the routing
// starter (C11) as a firewall-mark class.
type Mark uint32

// Neutral is the mark value that requires no kernel map publication.
const Neutral Mark = 0

// NeedsKernelPublish reports whether this mark must be published into the
// flow-DNS kernel map.
func (m Mark) NeedsKernelPublish() bool {
	return m != Neutral
}
