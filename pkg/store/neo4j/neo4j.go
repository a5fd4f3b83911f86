// Package neo4j implements store.GraphStore on a Neo4j server over Bolt.
package neo4j

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/opsgraph/opsgraph/pkg/logger"
	"github.com/opsgraph/opsgraph/pkg/store"
)

// Store is a store.GraphStore backed by a Neo4j database. Create it with
// NewStore.
type Store struct {
	driver   neo4j.DriverWithContext
	database string

	closeOnce sync.Once
	closeErr  error
}

// NewStoreParams configures a Store.
type NewStoreParams struct {
	URI      string
	Username string
	Password string

	// Database selects the target database; it defaults to neo4j.
	Database string

	// AutoCreateDatabase attempts to create the database on startup.
	// Community edition servers reject the administration command; the
	// store then falls back to the default database.
	AutoCreateDatabase bool

	// ClearOnStartup wipes the graph before any load.
	ClearOnStartup bool

	// BackupBeforeClear requests a backup before a startup clear. No
	// backup mechanism exists; combining it with ClearOnStartup is
	// refused with store.ErrBackupUnsupported.
	BackupBeforeClear bool
}

// NewStore connects to the configured Neo4j server, verifies
// connectivity, and applies the startup options.
func NewStore(ctx context.Context, params NewStoreParams) (*Store, error) {
	if params.URI == "" {
		return nil, fmt.Errorf("graph store uri is required")
	}
	if params.Username == "" {
		return nil, fmt.Errorf("graph store username is required")
	}
	if params.ClearOnStartup && params.BackupBeforeClear {
		return nil, fmt.Errorf("refusing to clear: %w", store.ErrBackupUnsupported)
	}

	database := params.Database
	if database == "" {
		database = "neo4j"
	}

	driver, err := neo4j.NewDriverWithContext(
		params.URI,
		neo4j.BasicAuth(params.Username, params.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("graph store unreachable at %s: %w", params.URI, err)
	}

	s := &Store{
		driver:   driver,
		database: database,
	}

	if params.AutoCreateDatabase {
		s.database = s.ensureDatabase(ctx, database)
	}
	if params.ClearOnStartup {
		if err := s.Clear(ctx); err != nil {
			driver.Close(ctx)
			return nil, err
		}
	}

	logger.Info("Graph store connected", "uri", params.URI, "database", s.database)
	return s, nil
}

// ensureDatabase creates the named database when the server supports it.
// Community edition servers only have the default database; the
// administration command fails there and the store falls back to neo4j.
func (s *Store) ensureDatabase(ctx context.Context, database string) string {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: "system"})
	defer session.Close(ctx)

	_, err := session.Run(ctx, "CREATE DATABASE $name IF NOT EXISTS", map[string]any{"name": database})
	if err == nil {
		return database
	}

	if isUnsupportedAdministration(err) {
		logger.Warn("Server does not support multiple databases, using default",
			"requested", database,
		)
		return "neo4j"
	}

	logger.Error("Failed to create database, using it anyway", "database", database, "err", err)
	return database
}

func isUnsupportedAdministration(err error) bool {
	var neoErr *db.Neo4jError
	if errors.As(err, &neoErr) {
		return strings.Contains(neoErr.Code, "UnsupportedAdministrationCommand")
	}
	return strings.Contains(err.Error(), "UnsupportedAdministrationCommand")
}

func (s *Store) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
}

func (s *Store) executeWrite(ctx context.Context, work func(tx neo4j.ManagedTransaction) (any, error)) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, work)
	return err
}

// Clear removes every node and relationship in the database.
func (s *Store) Clear(ctx context.Context) error {
	err := s.executeWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, "MATCH (n) DETACH DELETE n", nil)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to clear graph: %w", err)
	}

	logger.Info("Graph cleared", "database", s.database)
	return nil
}

// Close shuts down the driver. Calling Close more than once is safe.
func (s *Store) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.driver.Close(ctx)
	})
	return s.closeErr
}
