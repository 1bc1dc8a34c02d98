// Package discovery announces postoffice servers over multicast DNS and finds
// them again.
//
// A server that enables advertising registers its bound port under a DNS-SD
// service type (default "_postoffice._tcp"). Clients on the same network can
// browse for that type instead of being told host and port.
//
// # Usage Example
//
//	// Announce the port the server actually bound
//	adv, err := discovery.Advertise(discovery.Config{Instance: "mail"}, srv.Port(), logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer adv.Shutdown()
//
//	// Elsewhere: list announced servers
//	services, err := discovery.NewScanner().Scan(context.Background())
//	for _, s := range services {
//	    fmt.Println(s.Instance, s.Address())
//	}
//
// # Service Information
//
// Each discovered Service carries the instance name, mDNS hostname, preferred
// IP (IPv4 over IPv6), port and TXT metadata parsed from "key=value" records.
package discovery
