package main

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/buzkaaclicker/streams/persistent"
	"github.com/ory/dockertest"
	"github.com/ory/dockertest/docker"
	"github.com/sirupsen/logrus"
)

// Starts a throwaway postgres container, creates the schema and runs
// `go test` on the given package path with PGDB_DSN pointing at it.

func main() {
	flag.Parse()

	logrus.Println("Starting postgres db container")
	shutdownPgDb, err := createTestPgDb()
	if err != nil {
		logrus.WithError(err).Fatalln("Could not create test database.")
	}

	path := "./..."
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}
	logrus.WithField("path", path).Println("Running tests...")
	code := runTests(path)

	logrus.Println("Tests done. Shutting down test db.")
	shutdownPgDb()
	os.Exit(code)
}

func runTests(path string) int {
	c := exec.Command("go", "test", path)
	c.Env = os.Environ()
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		logrus.WithError(err).Errorln("Test command failed.")
		return 1
	}
	return 0
}

// createTestPgDb starts the container and exports its dsn. Returns the
// shutdown func OR error.
func createTestPgDb() (func(), error) {
	psgPassB := make([]byte, 30)
	if _, err := rand.Read(psgPassB); err != nil {
		return nil, fmt.Errorf("password generate: %w", err)
	}
	psgPass := base32.StdEncoding.EncodeToString(psgPassB)

	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("docker connect: %w", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "14.1",
		Env:        []string{"POSTGRES_PASSWORD=" + psgPass},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, fmt.Errorf("resource start: %w", err)
	}
	resource.Expire(300)
	shutdownResource := func() {
		if err := pool.Purge(resource); err != nil {
			logrus.WithError(err).Warningln("Could not purge resource.")
		}
	}

	pgDsn := fmt.Sprintf("postgresql://postgres:%s@localhost:%s/postgres?sslmode=disable",
		psgPass, resource.GetPort("5432/tcp"))
	pool.MaxWait = 30 * time.Second
	err = pool.Retry(func() error {
		ctx := context.Background()
		db, err := persistent.PgConnect(ctx, pgDsn)
		if err != nil {
			return err
		}
		defer db.Close()
		return persistent.CreateSchema(ctx, db)
	})
	if err != nil {
		shutdownResource()
		return nil, fmt.Errorf("database connect: %w", err)
	}

	persistent.SetTestEnvDsn(pgDsn)
	return shutdownResource, nil
}
