package wacore

import "go.mau.fi/wacore/types"

// Config carries everything NewClient needs that isn't a pluggable
// collaborator (KeyStore, MediaStore, Thumbnailer, Logger): the handshake
// identity, endpoint selection, and reconnect policy.
type Config struct {
	// MSISDN is the E.164 subscriber number, digits only, no leading "+".
	MSISDN string
	// Password is the base64 credential issued by the registration service.
	Password string
	// Username is the display name advertised in presence broadcasts.
	Username string

	// Host is the TCP+TLS endpoint to dial. Defaults to "c.whatsapp.net:443".
	Host string
	// Server is the host used in JIDs for one-to-one chats.
	Server string
	// GroupServer is the host used in JIDs for group chats.
	GroupServer string

	// Reconnect controls whether the client automatically reconnects after
	// a transport failure. NewConfig sets it to true; the zero value is
	// false.
	Reconnect bool

	// UserAgent and MCC identify this client as a mobile handset in the
	// handshake auth payload. DeviceType and AppVersion are carried in the
	// Config but the client does not read them.
	DeviceType string
	AppVersion string
	UserAgent  string
	MCC        string

	// ChallengeFile is the path where the last server nonce is cached
	// between runs; empty disables the cache, so every login takes a full
	// challenge round trip. KeystoreFile and MagicFile are carried in the
	// Config but the client does not read or write them.
	ChallengeFile string
	KeystoreFile  string
	MagicFile     string

	// ImageTool selects the Thumbnailer backend, if the host process
	// supports more than one.
	ImageTool string
}

const (
	defaultHost        = "c.whatsapp.net:443"
	defaultServer      = types.DefaultUserServer
	defaultGroupServer = types.GroupServer
)

// NewConfig returns a Config with Reconnect enabled and the endpoint
// fields set to their documented defaults. A zero-value Config has
// Reconnect false; use NewConfig to get reconnect-by-default behavior.
func NewConfig(msisdn, password string) Config {
	return Config{
		MSISDN:      msisdn,
		Password:    password,
		Host:        defaultHost,
		Server:      defaultServer,
		GroupServer: defaultGroupServer,
		Reconnect:   true,
	}
}

// withDefaults fills in the zero-value fields of cfg with their documented
// defaults and returns the result; cfg itself is not mutated.
func (cfg Config) withDefaults() Config {
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Server == "" {
		cfg.Server = defaultServer
	}
	if cfg.GroupServer == "" {
		cfg.GroupServer = defaultGroupServer
	}
	return cfg
}

// selfJID builds the JID this client authenticates as.
func (cfg Config) selfJID() types.JID {
	return types.JID{User: cfg.MSISDN, Server: cfg.Server}
}
