// Package utils provides general-purpose utility functions shared across
// the daemon.
//
// This package contains various helper functions and data structures that
// are used across the application, including IP address manipulation,
// path handling, file operations, validation, and bit manipulation.
//
// # Components
//
//   - IP utilities: Convert between IP/netmask and CIDR notation
//   - Path utilities: Handle absolute and relative paths
//   - File utilities: Safe file closing and operations
//   - Domain matching: suffix/specificity comparison for DNS rule matching
//   - BitSet: Efficient bit manipulation data structure
//
// # Example Usage
//
// IP address conversion:
//
//	ipNet, err := utils.IPv4ToNetmask("192.168.1.0", "255.255.255.0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Network: %s\n", ipNet.String()) // 192.168.1.0/24
//
// IPv6 conversion:
//
//	ipNet, err := utils.IPv6ToNetmask("2001:db8::", 64)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Path resolution:
//
//	absPath := utils.GetAbsolutePath("geosite", "/etc/routerd")
//	// Returns: /etc/routerd/geosite
//
// Domain matching:
//
//	if matches, specificity := utils.MatchDomain("www.example.com", "example.com"); matches {
//	    fmt.Println("suffix match, specificity", specificity)
//	}
//
// BitSet operations:
//
//	bs := utils.NewBitSet(100)
//	bs.Add(5)
//	bs.Add(42)
//	if bs.Has(5) {
//	    fmt.Printf("BitSet has %d bits set\n", bs.Count())
//	}
//
// The utilities in this package are designed to be simple, focused, and
// reusable across different parts of the application.
package utils
