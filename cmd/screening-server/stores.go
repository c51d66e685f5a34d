package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screening/registry/internal/config"
	"github.com/screening/registry/internal/domain/admin"
	"github.com/screening/registry/internal/domain/center"
	"github.com/screening/registry/internal/domain/screening"
	"github.com/screening/registry/internal/platform/db"
	"github.com/screening/registry/internal/platform/mongodb"
)

// stores bundles the repositories of the configured backend.
type stores struct {
	driver   string
	patients *screening.Registry
	centers  center.Repository
	users    admin.UserRepository
	pinger   db.Pinger

	// pool is nil unless the backend is postgres.
	pool         *pgxpool.Pool
	initializers []screening.Initializer
	close        func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	case config.DriverMongo:
		return openMongo(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (*stores, error) {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}

	var patientStores []screening.PatientStore
	for _, c := range screening.Categories {
		patientStores = append(patientStores, screening.NewPatientRepoPG(pool, c))
	}
	registry, err := screening.NewRegistry(patientStores...)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &stores{
		driver:   config.DriverPostgres,
		patients: registry,
		centers:  center.NewRepoPG(pool),
		users:    admin.NewUserRepoPG(pool),
		pinger:   pool,
		pool:     pool,
		close:    pool.Close,
	}, nil
}

func openMongo(ctx context.Context, cfg *config.Config) (*stores, error) {
	var maxPool uint64
	if cfg.DBMaxConns > 0 {
		maxPool = uint64(cfg.DBMaxConns)
	}
	client, database, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, maxPool)
	if err != nil {
		return nil, err
	}
	disconnect := func() { _ = client.Disconnect(context.Background()) }

	s := &stores{
		driver: config.DriverMongo,
		pinger: mongodb.Pinger{Client: client},
		close:  disconnect,
	}

	var patientStores []screening.PatientStore
	for _, c := range screening.Categories {
		store := screening.NewPatientRepoMongo(database, c)
		if i, ok := store.(screening.Initializer); ok {
			s.initializers = append(s.initializers, i)
		}
		patientStores = append(patientStores, store)
	}
	s.patients, err = screening.NewRegistry(patientStores...)
	if err != nil {
		disconnect()
		return nil, err
	}

	centers := center.NewRepoMongo(database)
	users := admin.NewUserRepoMongo(database)
	s.centers, s.users = centers, users
	s.initializers = append(s.initializers, centers, users)
	return s, nil
}

// initialize creates the indexes every store needs. It is safe to repeat.
func (s *stores) initialize(ctx context.Context) error {
	for _, i := range s.initializers {
		if err := i.Initialize(ctx); err != nil {
			return err
		}
	}
	return nil
}
