package database

import (
	"context"
	"strings"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/go-errors/errors"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/xompass/vsaas-search/helpers"
)

var optsValidator = validator.New()

type EsConnectorOpts struct {
	elasticsearch.Config `validate:"-"`
	Name                 string `validate:"required"`

	// RedisClient, when set, is used for per-index migration leases so that
	// concurrent processes cannot migrate the same index at once. Without it
	// the lock only covers the current process.
	RedisClient *redis.Client `validate:"-"`
}

type EsConnector struct {
	ctx     context.Context
	client  *elasticsearch.Client
	cluster ClusterAPI
	locker  MigrationLocker
	options *EsConnectorOpts
}

/**
 * NewEsConnector creates a new Elasticsearch connector.
 * It initializes the client with the provided options and checks the connection.
 */
func NewEsConnector(opts *EsConnectorOpts) (*EsConnector, error) {
	if err := optsValidator.Struct(opts); err != nil {
		return nil, errors.Errorf("invalid connector options: %v", err)
	}

	connector := &EsConnector{
		ctx:     context.Background(),
		options: opts,
	}

	err := connector.connect()
	if err != nil {
		return nil, err
	}

	if err := connector.Ping(); err != nil {
		return nil, err
	}

	return connector, nil
}

func NewDefaultEsConnector() (*EsConnector, error) {
	url := helpers.GetEnv("ELASTICSEARCH_URL", "http://localhost:9200")

	opts := EsConnectorOpts{
		Config: elasticsearch.Config{
			Addresses: strings.Split(url, ","),
			Username:  helpers.GetEnv("ELASTICSEARCH_USERNAME", ""),
			Password:  helpers.GetEnv("ELASTICSEARCH_PASSWORD", ""),
		},
		Name:        "elasticsearch",
		RedisClient: newDefaultRedisClient(),
	}

	return NewEsConnector(&opts)
}

// newDefaultRedisClient builds the lease store client when REDIS_HOST is
// configured; otherwise migrations fall back to the in-process lock.
func newDefaultRedisClient() *redis.Client {
	redisHost := helpers.GetEnv("REDIS_HOST", "")
	if redisHost == "" {
		return nil
	}

	redisPort := helpers.GetEnv("REDIS_PORT", "6379")
	redisPassword := helpers.GetEnv("REDIS_PASSWORD", "")

	return redis.NewClient(&redis.Options{
		Addr:     redisHost + ":" + redisPort,
		Password: redisPassword,
		DB:       1, // Use database 1 for coordination keys
	})
}

func (receiver *EsConnector) connect() error {
	client, err := elasticsearch.NewClient(receiver.options.Config)
	if err != nil {
		return err
	}

	receiver.client = client
	receiver.cluster = NewEsCluster(client)

	if receiver.options.RedisClient != nil {
		receiver.locker = NewRedisMigrationLocker(receiver.options.RedisClient)
	} else {
		receiver.locker = NewMemoryMigrationLocker()
	}

	return nil
}

/**
 * Ping checks the connection to the Elasticsearch cluster.
 */
func (receiver *EsConnector) Ping() error {
	if receiver.client == nil {
		return errors.New("es_connector client not initialized")
	}

	res, err := receiver.client.Ping(receiver.client.Ping.WithContext(receiver.ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.Errorf("cluster ping failed: %s", res.Status())
	}

	return nil
}

/**
 * Disconnect releases the connector. The underlying client holds no
 * dedicated connections, so there is nothing to tear down.
 */
func (receiver *EsConnector) Disconnect() error {
	if receiver.client == nil {
		return errors.New("es_connector client not initialized")
	}
	return nil
}

/**
 * GetDriver returns the underlying Elasticsearch client.
 */
func (receiver *EsConnector) GetDriver() any {
	return receiver.client
}

func (receiver *EsConnector) GetName() string {
	return receiver.options.Name
}

/**
 * GetCluster returns the low-level cluster API used by the migration layer.
 */
func (receiver *EsConnector) GetCluster() ClusterAPI {
	return receiver.cluster
}

/**
 * MigratorFor returns a migrator bound to the model's index and declared
 * schema. The model must implement SearchableModel.
 */
func (receiver *EsConnector) MigratorFor(model IModel) (*EsMigrator, error) {
	searchable, ok := model.(SearchableModel)
	if !ok {
		return nil, errors.Errorf("the model %s does not declare a search schema", model.GetModelName())
	}

	return NewEsMigrator(receiver.cluster, model.GetIndexName(), searchable.DefineSearchSchema(), receiver.locker), nil
}
