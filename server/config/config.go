// Package config holds the constants shared between the server and its
// clients.
package config

// DefaultPort is the TCP port the server listens on unless the listen flag
// says otherwise.
const DefaultPort = 35680
