package connection

import (
	"net"
	"strconv"
	"strings"

	"github.com/temirov/testnode/internal/nodeerrors"
)

const (
	// DefaultPort is the SSH port assumed when a descriptor omits both ports.
	DefaultPort = 22
	// DefaultUsername is the login used when a descriptor omits the username.
	DefaultUsername = "root"

	addressPairFieldConstant     = "address"
	portPairFieldConstant        = "port"
	missingAddressReasonConstant = "at least one of address and publicAddress must be set"
	missingPortReasonConstant    = "at least one of port and publicPort must be set"
)

// Parameters carries the raw connection fields supplied by a node descriptor.
type Parameters struct {
	Address        string
	Port           int
	PublicAddress  string
	PublicPort     int
	Username       string
	Password       string
	PrivateKeyFile string
}

// DefaultParameters returns parameters preloaded with the standard port and username.
func DefaultParameters() Parameters {
	return Parameters{
		Port:       DefaultPort,
		PublicPort: DefaultPort,
		Username:   DefaultUsername,
	}
}

// Descriptor is validated addressing and credential data for a remote target.
type Descriptor struct {
	address        string
	port           int
	publicAddress  string
	publicPort     int
	username       string
	password       string
	privateKeyFile string
}

// Build validates parameters and mirrors the missing half of each address and port pair.
func Build(parameters Parameters) (Descriptor, error) {
	address := strings.TrimSpace(parameters.Address)
	publicAddress := strings.TrimSpace(parameters.PublicAddress)

	switch {
	case len(address) == 0 && len(publicAddress) == 0:
		return Descriptor{}, nodeerrors.ConfigurationError{Field: addressPairFieldConstant, Reason: missingAddressReasonConstant}
	case len(address) == 0:
		address = publicAddress
	case len(publicAddress) == 0:
		publicAddress = address
	}

	port := parameters.Port
	publicPort := parameters.PublicPort

	switch {
	case port == 0 && publicPort == 0:
		return Descriptor{}, nodeerrors.ConfigurationError{Field: portPairFieldConstant, Reason: missingPortReasonConstant}
	case port == 0:
		port = publicPort
	case publicPort == 0:
		publicPort = port
	}

	return Descriptor{
		address:        address,
		port:           port,
		publicAddress:  publicAddress,
		publicPort:     publicPort,
		username:       parameters.Username,
		password:       parameters.Password,
		privateKeyFile: parameters.PrivateKeyFile,
	}, nil
}

// Address returns the internal address of the target.
func (descriptor Descriptor) Address() string { return descriptor.address }

// Port returns the internal port of the target.
func (descriptor Descriptor) Port() int { return descriptor.port }

// PublicAddress returns the address the harness dials.
func (descriptor Descriptor) PublicAddress() string { return descriptor.publicAddress }

// PublicPort returns the port the harness dials.
func (descriptor Descriptor) PublicPort() int { return descriptor.publicPort }

// Username returns the login name.
func (descriptor Descriptor) Username() string { return descriptor.username }

// Password returns the login password, if any.
func (descriptor Descriptor) Password() string { return descriptor.password }

// PrivateKeyFile returns the path of the private key, if any.
func (descriptor Descriptor) PrivateKeyFile() string { return descriptor.privateKeyFile }

// Endpoint joins the public address and port into a dialable host:port.
func (descriptor Descriptor) Endpoint() string {
	return net.JoinHostPort(descriptor.publicAddress, strconv.Itoa(descriptor.publicPort))
}
