/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jerry-enebeli/srp/config"
	"github.com/jerry-enebeli/srp/internal/apierror"
	"github.com/jerry-enebeli/srp/internal/cache"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

var (
	// ErrAlreadyProcessed is returned by RecordMailOutcome when another worker recorded the mail first.
	ErrAlreadyProcessed = errors.New("mail already processed")
	// ErrDuplicateKillmail is returned when a live claim already exists for the killmail.
	ErrDuplicateKillmail = errors.New("a claim already exists for this killmail")
	// ErrStaleClaim is returned when a claim changed status between read and update.
	ErrStaleClaim = errors.New("claim was modified concurrently")
)

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration, c cache.Cache) (IDataSource, error) {
	con, err := GetDBConnection(configuration, c)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration, c cache.Cache) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con, Cache: c}
	})
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, errors.New("database connection was not initialized")
	}
	return instance, nil
}

// ConnectDB opens and pings the database. The schema is managed by `srp migrate`.
func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		logrus.Errorf("database Connection error ❌: %v", err)
		return nil, err
	}
	return db, nil
}

// withTx runs fn inside a transaction, committing when fn returns nil.
func (d Datasource) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logrus.WithError(rbErr).Error("rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}

// mapError converts driver errors into API errors.
func mapError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("%s not found", entity), nil)
	}
	if isUniqueViolation(err) {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("%s already exists", entity), err)
	}
	return apierror.NewAPIError(apierror.ErrInternalServer, fmt.Sprintf("Failed to access %s", entity), err)
}
