package database

import (
	"context"

	"github.com/go-errors/errors"
)

// Connector es una interfaz genérica para cualquier tipo de conector de base de datos
type Connector interface {
	Ping() error
	Disconnect() error
	GetName() string
	GetDriver() any
}

type Datasource struct {
	connectors           map[string]Connector // Connectors registered in the datasource. This allows to have multiple connectors for different clusters.
	models               map[string]IModel    // Models registered in the datasource.
	connectorByModelName map[string]Connector // Connectors by model name.
}

func (receiver *Datasource) AddConnector(connector Connector) error {
	if receiver == nil {
		return errors.New("datasource is nil")
	}

	if receiver.connectors == nil {
		receiver.connectors = make(map[string]Connector)
	}

	receiver.connectors[connector.GetName()] = connector
	return nil
}

func (receiver *Datasource) Destroy() {
	for _, connector := range receiver.connectors {
		if connector != nil {
			_ = connector.Disconnect()
		}
	}
}

func (receiver *Datasource) RegisterModel(model IModel) error {
	if receiver == nil {
		return errors.New("datasource is nil")
	}

	connectorName := model.GetConnectorName()
	modelName := model.GetModelName()
	connector, err := receiver.GetConnector(connectorName)
	if err != nil {
		return err
	}

	if receiver.models == nil {
		receiver.models = make(map[string]IModel)
	}

	if receiver.connectorByModelName == nil {
		receiver.connectorByModelName = make(map[string]Connector)
	}

	if receiver.connectorByModelName[modelName] != nil {
		return errors.Errorf("the model %s is already registered with connector %s", modelName, receiver.connectorByModelName[modelName].GetName())
	}

	receiver.models[modelName] = model
	receiver.connectorByModelName[modelName] = connector
	return nil
}

func (receiver *Datasource) GetModelConnector(model IModel) (Connector, error) {
	if receiver == nil {
		return nil, errors.New("datasource is nil")
	}

	connector, ok := receiver.connectorByModelName[model.GetModelName()]
	if !ok {
		return nil, errors.Errorf("the model %s is not registered", model.GetModelName())
	}

	return connector, nil
}

func (receiver *Datasource) GetConnector(name string) (Connector, error) {
	if receiver == nil {
		return nil, errors.New("datasource is nil")
	}

	connector, ok := receiver.connectors[name]
	if !ok {
		return nil, errors.Errorf("the connector %s is not registered", name)
	}

	return connector, nil
}

func (receiver *Datasource) GetModel(modelName string) (IModel, error) {
	if receiver == nil {
		return nil, errors.New("datasource is nil")
	}

	if receiver.models == nil {
		return nil, errors.New("no models registered in the datasource")
	}

	model, ok := receiver.models[modelName]
	if !ok {
		return nil, errors.Errorf("the model %s is not registered", modelName)
	}

	return model, nil
}

// migratorFor resolves the migrator bound to the model's index. The model
// must be registered with an Elasticsearch connector and declare a schema.
func (receiver *Datasource) migratorFor(model IModel) (*EsMigrator, error) {
	connector, err := receiver.GetModelConnector(model)
	if err != nil {
		return nil, errors.Errorf("failed to get connector for model %s: %v", model.GetModelName(), err)
	}

	esConnector, ok := connector.(*EsConnector)
	if !ok {
		return nil, errors.Errorf("the connector for model %s is not an EsConnector", model.GetModelName())
	}

	return esConnector.MigratorFor(model)
}

/**
 * PlanModelMigration computes the change plan between a model's declared
 * schema and the mapping currently live on the cluster. Nothing is mutated.
 */
func (receiver *Datasource) PlanModelMigration(ctx context.Context, model IModel) (MigrationPlan, error) {
	if receiver == nil {
		return MigrationPlan{}, errors.New("datasource is nil")
	}

	migrator, err := receiver.migratorFor(model)
	if err != nil {
		return MigrationPlan{}, err
	}

	return migrator.PlanMigration(ctx)
}

/**
 * MigrateModel applies a model's declared schema to its index.
 */
func (receiver *Datasource) MigrateModel(ctx context.Context, model IModel, opts MigrateOptions) (*MigrationResult, error) {
	if receiver == nil {
		return nil, errors.New("datasource is nil")
	}

	migrator, err := receiver.migratorFor(model)
	if err != nil {
		return nil, err
	}

	return migrator.Migrate(ctx, opts)
}

/**
 * RollbackModel undoes a previously executed migration of the model's index
 * using the backup recorded with it.
 */
func (receiver *Datasource) RollbackModel(ctx context.Context, model IModel, migrationId string) (*MigrationHistoryEntry, error) {
	if receiver == nil {
		return nil, errors.New("datasource is nil")
	}

	migrator, err := receiver.migratorFor(model)
	if err != nil {
		return nil, err
	}

	return migrator.Rollback(ctx, migrationId)
}

/**
 * ModelMigrationHistory returns the recorded migration attempts, newest
 * first.
 */
func (receiver *Datasource) ModelMigrationHistory(ctx context.Context, model IModel) ([]MigrationHistoryEntry, error) {
	if receiver == nil {
		return nil, errors.New("datasource is nil")
	}

	migrator, err := receiver.migratorFor(model)
	if err != nil {
		return nil, err
	}

	return migrator.GetMigrationHistory(ctx)
}

/**
 * MigrateModels migrates every registered model that declares a search
 * schema. This method should be called after all models are registered.
 */
func (receiver *Datasource) MigrateModels(ctx context.Context, opts MigrateOptions) error {
	if receiver == nil {
		return errors.New("datasource is nil")
	}

	for modelName, model := range receiver.models {
		if _, ok := model.(SearchableModel); !ok {
			continue // Model doesn't declare a schema, skip
		}

		if _, err := receiver.MigrateModel(ctx, model, opts); err != nil {
			return errors.Errorf("failed to migrate model %s: %v", modelName, err)
		}
	}

	return nil
}
