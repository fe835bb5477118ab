package config

import (
	"github.com/feral-file/card-registry/internal/providers/jetstream"
	"github.com/feral-file/card-registry/internal/store"
)

// StoreConfig builds the store options from the storage and database sections
func StoreConfig(storage StorageConfig, database DatabaseConfig) store.Config {
	cfg := store.Config{
		Driver: storage.Driver,
		Badger: store.BadgerConfig{
			Path:       storage.BadgerPath,
			SyncWrites: storage.SyncWrites,
		},
	}
	if storage.Driver == store.DriverPostgres {
		cfg.DSN = database.DSN()
		cfg.AutoMigrate = database.AutoMigrate
		cfg.MaxOpenConns = database.MaxOpenConns
		cfg.MaxIdleConns = database.MaxIdleConns
		cfg.ConnMaxLifetime = database.ConnMaxLifetime
		cfg.ConnMaxIdleTime = database.ConnMaxIdleTime
	}
	return cfg
}

// Publisher builds the JetStream publisher options
func (c NATSConfig) Publisher() jetstream.Config {
	return jetstream.Config{
		URL:            c.URL,
		SubjectPrefix:  c.SubjectPrefix,
		MaxReconnects:  c.MaxReconnects,
		ReconnectWait:  c.ReconnectWait,
		ConnectionName: c.ConnectionName,
		PublishTimeout: c.PublishTimeout,
	}
}
