package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Test model with a declared search schema
type ProductModel struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Age         int     `json:"age"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

func (p *ProductModel) GetIndexName() string     { return "products" }
func (p *ProductModel) GetModelName() string     { return "Product" }
func (p *ProductModel) GetConnectorName() string { return "elasticsearch" }
func (p *ProductModel) GetId() any               { return p.ID }

func (p *ProductModel) DefineSearchSchema() SchemaDescriptor {
	return SchemaDescriptor{
		"name":        {Type: FieldTypeKeyword, Required: true},
		"age":         {Type: FieldTypeInteger},
		"description": {Type: FieldTypeText},
		"price":       {Type: FieldTypeDouble},
	}
}

// Model without a declared schema
type PlainModel struct {
	ID string
}

func (p *PlainModel) GetIndexName() string     { return "plain" }
func (p *PlainModel) GetModelName() string     { return "Plain" }
func (p *PlainModel) GetConnectorName() string { return "elasticsearch" }
func (p *PlainModel) GetId() any               { return p.ID }

func testEsConnector(cluster ClusterAPI) *EsConnector {
	return &EsConnector{
		ctx:     context.Background(),
		cluster: cluster,
		locker:  NewMemoryMigrationLocker(),
		options: &EsConnectorOpts{Name: "elasticsearch"},
	}
}

func TestDatasourceRegisterModel(t *testing.T) {
	ds := &Datasource{}
	connector := testEsConnector(new(MockClusterAPI))

	require.NoError(t, ds.AddConnector(connector))
	require.NoError(t, ds.RegisterModel(&ProductModel{}))

	err := ds.RegisterModel(&ProductModel{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	model, err := ds.GetModel("Product")
	require.NoError(t, err)
	assert.Equal(t, "products", model.GetIndexName())
}

func TestDatasourceRegisterModelUnknownConnector(t *testing.T) {
	ds := &Datasource{}

	err := ds.RegisterModel(&ProductModel{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestDatasourcePlanModelMigration(t *testing.T) {
	cluster := new(MockClusterAPI)
	ds := &Datasource{}
	require.NoError(t, ds.AddConnector(testEsConnector(cluster)))
	require.NoError(t, ds.RegisterModel(&ProductModel{}))

	cluster.On("IndexExists", mock.Anything, "products").Return(true, nil)
	cluster.On("GetMapping", mock.Anything, "products").Return(productsLiveMapping, nil)

	plan, err := ds.PlanModelMigration(context.Background(), &ProductModel{})
	require.NoError(t, err)

	assert.Equal(t, "products", plan.IndexName)
	assert.ElementsMatch(t, []string{"description", "price"}, plan.AddedFields)
	assert.False(t, plan.RequiresReindex)
}

func TestDatasourceMigrateModelWithoutSchema(t *testing.T) {
	ds := &Datasource{}
	require.NoError(t, ds.AddConnector(testEsConnector(new(MockClusterAPI))))
	require.NoError(t, ds.RegisterModel(&PlainModel{}))

	_, err := ds.MigrateModel(context.Background(), &PlainModel{}, DefaultMigrateOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not declare a search schema")
}

func TestDatasourceMigrateModelsSkipsPlainModels(t *testing.T) {
	cluster := new(MockClusterAPI)
	ds := &Datasource{}
	require.NoError(t, ds.AddConnector(testEsConnector(cluster)))
	require.NoError(t, ds.RegisterModel(&ProductModel{}))
	require.NoError(t, ds.RegisterModel(&PlainModel{}))

	cluster.On("IndexExists", mock.Anything, "products").Return(true, nil)
	cluster.On("GetMapping", mock.Anything, "products").Return(productsLiveMapping, nil)
	cluster.On("PutMapping", mock.Anything, "products", mock.Anything).Return(nil)
	mockHistoryWrites(cluster)

	opts := DefaultMigrateOptions()
	opts.Backup = false

	err := ds.MigrateModels(context.Background(), opts)
	require.NoError(t, err)

	// Only the searchable model reached the cluster.
	cluster.AssertNotCalled(t, "IndexExists", mock.Anything, "plain")
}
