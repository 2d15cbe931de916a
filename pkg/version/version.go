// Package version provides version information for the ocw-bridge binary.
package version

// Version is the current version of ocw-bridge.
const Version = "0.3.0"

// AgentString returns the User-Agent sent to the price endpoint.
// Format: ocw-bridge/v{version}
func AgentString() string {
	return "ocw-bridge/v" + Version
}
