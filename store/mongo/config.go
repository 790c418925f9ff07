package mongo

import (
	"crypto/tls"
	"time"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/unkn0wn-root/doccache/store"
)

// Config selects the MongoDB deployment and collection. Exactly one of URI
// and Settings must be set.
type Config struct {
	URI        string
	Settings   *Settings
	Database   string
	Collection string

	// SkipIndexes leaves index management to the operator.
	SkipIndexes bool
}

// Settings is the structured alternative to a connection string.
type Settings struct {
	Hosts          []string
	Username       string
	Password       string
	AuthSource     string
	ReplicaSet     string
	AppName        string
	TLS            bool
	ConnectTimeout time.Duration
}

func (c Config) Validate() error {
	switch {
	case c.URI != "" && c.Settings != nil:
		return store.InvalidConfig(backend, "set either a connection URI or connection settings, not both")
	case c.URI == "" && c.Settings == nil:
		return store.InvalidConfig(backend, "a connection URI or connection settings are required")
	case c.Settings != nil && len(c.Settings.Hosts) == 0:
		return store.InvalidConfig(backend, "connection settings need at least one host")
	case c.Database == "":
		return store.InvalidConfig(backend, "database name is required")
	case c.Collection == "":
		return store.InvalidConfig(backend, "collection name is required")
	}
	return nil
}

func (c Config) clientOptions() *options.ClientOptions {
	if c.URI != "" {
		return options.Client().ApplyURI(c.URI)
	}
	s := c.Settings
	opts := options.Client().SetHosts(s.Hosts)
	if s.Username != "" {
		opts.SetAuth(options.Credential{
			Username:   s.Username,
			Password:   s.Password,
			AuthSource: s.AuthSource,
		})
	}
	if s.ReplicaSet != "" {
		opts.SetReplicaSet(s.ReplicaSet)
	}
	if s.AppName != "" {
		opts.SetAppName(s.AppName)
	}
	if s.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	if s.ConnectTimeout > 0 {
		opts.SetConnectTimeout(s.ConnectTimeout)
	}
	return opts
}
