package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xompass/vsaas-search/search_errors"
)

func TestBackupCreatesCopyWithLiveMapping(t *testing.T) {
	cluster := new(MockClusterAPI)
	manager := NewBackupManager(cluster)

	cluster.On("GetMapping", mock.Anything, "products").Return(productsLiveMapping, nil)
	cluster.On("CreateIndex", mock.Anything, "products_backup_mig-1", mock.Anything).Return(nil)
	cluster.On("Reindex", mock.Anything, "products", "products_backup_mig-1", true, DefaultCopyTimeout).Return(nil)

	name, err := manager.Backup(context.Background(), "products", "mig-1", 0)
	require.NoError(t, err)
	assert.Equal(t, "products_backup_mig-1", name)

	// The backup keeps the live mapping, not the declared schema.
	createCall := findCall(cluster, "CreateIndex")
	require.NotNil(t, createCall)
	body := createCall.Arguments.Get(2).(map[string]any)
	properties := body["mappings"].(map[string]any)["properties"].(map[string]any)
	assert.Contains(t, properties, "name")
	assert.Contains(t, properties, "age")
}

func TestBackupForwardsCallerTimeout(t *testing.T) {
	cluster := new(MockClusterAPI)
	manager := NewBackupManager(cluster)

	cluster.On("GetMapping", mock.Anything, "products").Return(productsLiveMapping, nil)
	cluster.On("CreateIndex", mock.Anything, "products_backup_mig-2", mock.Anything).Return(nil)
	cluster.On("Reindex", mock.Anything, "products", "products_backup_mig-2", true, 5*time.Minute).Return(nil)

	_, err := manager.Backup(context.Background(), "products", "mig-2", 5*time.Minute)
	require.NoError(t, err)
	cluster.AssertExpectations(t)
}

func TestBackupCopyFailureRemovesPartialBackup(t *testing.T) {
	cluster := new(MockClusterAPI)
	manager := NewBackupManager(cluster)

	cluster.On("GetMapping", mock.Anything, "products").Return(productsLiveMapping, nil)
	cluster.On("CreateIndex", mock.Anything, "products_backup_mig-3", mock.Anything).Return(nil)
	cluster.On("Reindex", mock.Anything, "products", "products_backup_mig-3", true, mock.Anything).
		Return(search_errors.ClusterIOError("reindex failed: 503 Service Unavailable"))
	cluster.On("DeleteIndex", mock.Anything, "products_backup_mig-3").Return(nil)

	_, err := manager.Backup(context.Background(), "products", "mig-3", 0)
	require.Error(t, err)

	assert.True(t, search_errors.HasCode(err, search_errors.CodeBackupFailed))
	cluster.AssertCalled(t, "DeleteIndex", mock.Anything, "products_backup_mig-3")
}

func TestBackupMappingFailureAbortsEarly(t *testing.T) {
	cluster := new(MockClusterAPI)
	manager := NewBackupManager(cluster)

	cluster.On("GetMapping", mock.Anything, "products").
		Return(nil, search_errors.ClusterIOError("get mapping failed for products: 500 Internal Server Error"))

	_, err := manager.Backup(context.Background(), "products", "mig-4", 0)
	require.Error(t, err)

	assert.True(t, search_errors.HasCode(err, search_errors.CodeBackupFailed))
	cluster.AssertNotCalled(t, "CreateIndex", mock.Anything, mock.Anything, mock.Anything)
	cluster.AssertNotCalled(t, "Reindex", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
