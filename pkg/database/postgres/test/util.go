// Package test runs throwaway postgres containers for store tests.
package test

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"

	_ "github.com/jackc/pgx/v4/stdlib" //nolint:revive

	"github.com/code-payments/wallet-server/pkg/retry"
	"github.com/code-payments/wallet-server/pkg/retry/backoff"
)

const (
	image    = "postgres"
	imageTag = "14"

	user     = "wallet"
	password = "wallet-local"
	database = "wallet_test"

	// Containers outlive a crashed test binary by at most this long.
	maxContainerLifetime = 2 * time.Minute

	readyAttempts = 60
	readyInterval = 500 * time.Millisecond
)

// Container is a running postgres instance and an open pool to it.
type Container struct {
	DB *sql.DB

	pool     *dockertest.Pool
	resource *dockertest.Resource
}

// Start runs a postgres container and waits until it accepts connections.
// Close removes the container.
func Start(pool *dockertest.Pool) (*Container, error) {
	resource, err := pool.RunWithOptions(
		&dockertest.RunOptions{
			Repository: image,
			Tag:        imageTag,
			Env: []string{
				"POSTGRES_USER=" + user,
				"POSTGRES_PASSWORD=" + password,
				"POSTGRES_DB=" + database,
			},
		},
		func(hc *docker.HostConfig) {
			hc.AutoRemove = true
			hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "error starting postgres container")
	}
	_ = resource.Expire(uint(maxContainerLifetime.Seconds()))

	c := &Container{pool: pool, resource: resource}

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=disable",
		user, password, resource.GetHostPort("5432/tcp"), database,
	)
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		c.Close()
		return nil, errors.Wrap(err, "error opening connection pool")
	}
	c.DB = db

	_, err = retry.Retry(
		db.Ping,
		retry.Limit(readyAttempts),
		retry.Backoff(backoff.Constant(readyInterval), readyInterval),
	)
	if err != nil {
		c.Close()
		return nil, errors.Wrap(err, "postgres container never became ready")
	}

	return c, nil
}

// Close closes the pool and removes the container.
func (c *Container) Close() {
	if c.DB != nil {
		_ = c.DB.Close()
	}
	_ = c.pool.Purge(c.resource)
}
