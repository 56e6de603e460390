package pg

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/external"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/rdsutils"
	"github.com/pkg/errors"

	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

const driverName = "nrpgx"

type Config struct {
	User               string
	Host               string
	Password           string
	Port               string
	DbName             string
	MaxOpenConnections int
	MaxIdleConnections int

	// UseAwsIam swaps the password for a short lived RDS auth token derived
	// from the default AWS credential chain.
	UseAwsIam bool
}

// Open returns a connection pool for the provided config.
func Open(ctx context.Context, config Config) (*sql.DB, error) {
	dsn, err := config.dsn()
	if err != nil {
		return nil, err
	}

	db, err := open(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if config.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(config.MaxOpenConnections)
	}
	if config.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(config.MaxIdleConnections)
	}

	return db, nil
}

func (c Config) dsn() (string, error) {
	if !c.UseAwsIam {
		return passwordDSN(c.User, c.Password, c.Host, c.Port, c.DbName), nil
	}

	awsConfig, err := external.LoadDefaultAWSConfig()
	if err != nil {
		return "", errors.Wrap(err, "error loading aws config")
	}
	return iamDSN(c.User, c.Host, c.Port, c.DbName, awsConfig)
}

// iamDSN authenticates with an RDS IAM token. Aurora Serverless does not
// support IAM database authentication.
func iamDSN(user, host, port, dbName string, awsConfig aws.Config) (string, error) {
	rdsClient := rds.New(awsConfig)

	token, err := rdsutils.BuildAuthToken(net.JoinHostPort(host, port), rdsClient.Region, user, rdsClient.Credentials)
	if err != nil {
		return "", errors.Wrap(err, "error building rds auth token")
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s", host, port, user, token, dbName), nil
}

// TODO: require TLS once the database CA bundle ships with the deployment.
func passwordDSN(user, password, host, port, dbName string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + dbName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "error opening connection pool")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error pinging database")
	}

	return db, nil
}
