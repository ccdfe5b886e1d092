// Package mongodb stores jobs and tasks in MongoDB collections.
package mongodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kidandcat/jobtracker/internal/tracker"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	DefaultHealthInterval = 30 * time.Second

	maxPoolSize            = 10
	serverSelectionTimeout = 5 * time.Second
	socketTimeout          = 45 * time.Second
)

// client is the part of *mongo.Client the connector depends on.
type client interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
	Disconnect(ctx context.Context) error
	Database(name string, opts ...*options.DatabaseOptions) *mongo.Database
}

type dialFunc func(ctx context.Context, uri string) (client, error)

// Connector hands out a shared database handle, reconnecting when the
// cached client stops answering pings.
type Connector struct {
	uri      string
	database string
	interval time.Duration
	log      logrus.FieldLogger
	dial     dialFunc
	now      func() time.Time

	mu       sync.Mutex
	client   client
	lastPing time.Time
}

type ConnectorOption func(*Connector)

// WithHealthInterval sets how long a successful ping is trusted.
func WithHealthInterval(d time.Duration) ConnectorOption {
	return func(c *Connector) { c.interval = d }
}

func WithLogger(log logrus.FieldLogger) ConnectorOption {
	return func(c *Connector) { c.log = log }
}

func NewConnector(uri, database string, opts ...ConnectorOption) *Connector {
	c := &Connector{
		uri:      uri,
		database: database,
		interval: DefaultHealthInterval,
		log:      logrus.StandardLogger(),
		dial:     dialMongo,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func dialMongo(ctx context.Context, uri string) (client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(maxPoolSize).
		SetServerSelectionTimeout(serverSelectionTimeout).
		SetSocketTimeout(socketTimeout)
	c, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := c.Ping(ctx, readpref.Primary()); err != nil {
		c.Disconnect(context.Background())
		return nil, err
	}
	return c, nil
}

// Connect returns a ready database handle. A cached client is reused while
// its last ping is recent; a client that fails its ping is replaced.
func (c *Connector) Connect(ctx context.Context) (*mongo.Database, error) {
	cl, err := c.connect(ctx, false)
	if err != nil {
		return nil, err
	}
	return cl.Database(c.database), nil
}

// Ping checks the connection regardless of when it was last verified.
func (c *Connector) Ping(ctx context.Context) error {
	_, err := c.connect(ctx, true)
	return err
}

func (c *Connector) connect(ctx context.Context, force bool) (client, error) {
	if c.uri == "" {
		return nil, &tracker.ConnectionError{Err: fmt.Errorf("MONGODB_URI is not set")}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		if !force && c.now().Sub(c.lastPing) < c.interval {
			return c.client, nil
		}
		err := c.client.Ping(ctx, readpref.Primary())
		if err == nil {
			c.lastPing = c.now()
			return c.client, nil
		}
		c.log.WithError(err).Warn("mongodb ping failed, reconnecting")
		c.client.Disconnect(context.Background())
		c.client = nil
	}

	cl, err := c.dial(ctx, c.uri)
	if err != nil {
		return nil, &tracker.ConnectionError{Err: err}
	}
	c.client = cl
	c.lastPing = c.now()
	c.log.WithField("database", c.database).Info("connected to mongodb")
	return cl, nil
}

// Close disconnects the cached client, if any.
func (c *Connector) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	return err
}
