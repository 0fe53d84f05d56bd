// ABOUTME: Version information for sendspin-cast
// ABOUTME: Reported by the CLIs and advertised by the receiver emulator
package version

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the product name
	Product = "Sendspin Cast"

	// Manufacturer identifies who builds it
	Manufacturer = "Sendspin"
)

// String returns the product and version, e.g. "Sendspin Cast 0.3.0"
func String() string {
	return Product + " " + Version
}
