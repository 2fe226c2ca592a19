package database

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/bytedance/sonic"
	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/valyala/fastjson"
	"github.com/xompass/vsaas-search/search_errors"
)

// ClusterAPI abstracts the cluster HTTP operations the migration layer
// consumes. It exists so the migrator can be exercised against a mock in
// tests; the only production implementation wraps the official client.
type ClusterAPI interface {
	// GetMapping returns the raw get-mapping response for the index.
	GetMapping(ctx context.Context, index string) ([]byte, error)

	// CreateIndex creates an index with the given body (settings, mappings).
	CreateIndex(ctx context.Context, index string, body map[string]any) error

	// DeleteIndex deletes an index.
	DeleteIndex(ctx context.Context, index string) error

	// PutMapping adds the given properties to an existing index mapping.
	PutMapping(ctx context.Context, index string, properties map[string]any) error

	// Reindex copies all documents from source into dest. When
	// waitForCompletion is true the call blocks until the copy finishes or
	// the timeout elapses.
	Reindex(ctx context.Context, source string, dest string, waitForCompletion bool, timeout time.Duration) error

	// UpdateAliases applies a list of alias actions as a single atomic call.
	UpdateAliases(ctx context.Context, actions []map[string]any) error

	// PutAlias points the alias name at the index.
	PutAlias(ctx context.Context, index string, name string) error

	// IndexExists reports whether the index (or an alias with that name) exists.
	IndexExists(ctx context.Context, index string) (bool, error)

	// IndexDocument upserts a document by id.
	IndexDocument(ctx context.Context, index string, id string, doc any) error

	// UpdateDocument merges a partial document into an existing one. It fails
	// with a not-found error when the document does not exist.
	UpdateDocument(ctx context.Context, index string, id string, partial any) error

	// Search runs a search request body against the index and returns the raw
	// response.
	Search(ctx context.Context, index string, body map[string]any) ([]byte, error)

	// Count returns the number of documents in the index.
	Count(ctx context.Context, index string) (int64, error)

	// Refresh makes recent writes to the index visible to search.
	Refresh(ctx context.Context, index string) error
}

type esCluster struct {
	client *elasticsearch.Client
}

func NewEsCluster(client *elasticsearch.Client) ClusterAPI {
	return &esCluster{client: client}
}

func (c *esCluster) GetMapping(ctx context.Context, index string) ([]byte, error) {
	res, err := c.client.Indices.GetMapping(
		c.client.Indices.GetMapping.WithIndex(index),
		c.client.Indices.GetMapping.WithContext(ctx),
	)
	if err != nil {
		return nil, search_errors.ClusterIOError("get mapping failed for " + index + ": " + err.Error())
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, search_errors.ClusterIOError("get mapping failed for " + index + ": " + res.Status())
	}

	return io.ReadAll(res.Body)
}

func (c *esCluster) CreateIndex(ctx context.Context, index string, body map[string]any) error {
	payload, err := sonic.Marshal(body)
	if err != nil {
		return search_errors.ClusterIOError("failed to encode create index body for " + index + ": " + err.Error())
	}

	res, err := c.client.Indices.Create(
		index,
		c.client.Indices.Create.WithBody(bytes.NewReader(payload)),
		c.client.Indices.Create.WithContext(ctx),
	)
	return closeAfter(clusterError("create index", index, res, err), res)
}

func (c *esCluster) DeleteIndex(ctx context.Context, index string) error {
	res, err := c.client.Indices.Delete(
		[]string{index},
		c.client.Indices.Delete.WithContext(ctx),
	)
	return closeAfter(clusterError("delete index", index, res, err), res)
}

func (c *esCluster) PutMapping(ctx context.Context, index string, properties map[string]any) error {
	payload, err := sonic.Marshal(map[string]any{"properties": properties})
	if err != nil {
		return search_errors.ClusterIOError("failed to encode mapping for " + index + ": " + err.Error())
	}

	res, err := c.client.Indices.PutMapping(
		[]string{index},
		bytes.NewReader(payload),
		c.client.Indices.PutMapping.WithContext(ctx),
	)
	return closeAfter(clusterError("put mapping", index, res, err), res)
}

func (c *esCluster) Reindex(ctx context.Context, source string, dest string, waitForCompletion bool, timeout time.Duration) error {
	payload, err := sonic.Marshal(map[string]any{
		"source": map[string]any{"index": source},
		"dest":   map[string]any{"index": dest},
	})
	if err != nil {
		return search_errors.ClusterIOError("failed to encode reindex body: " + err.Error())
	}

	options := []func(*esapi.ReindexRequest){
		c.client.Reindex.WithContext(ctx),
		c.client.Reindex.WithWaitForCompletion(waitForCompletion),
	}
	if timeout > 0 {
		options = append(options, c.client.Reindex.WithTimeout(timeout))
	}

	res, err := c.client.Reindex(bytes.NewReader(payload), options...)
	return closeAfter(clusterError("reindex "+source+" into "+dest, source, res, err), res)
}

func (c *esCluster) UpdateAliases(ctx context.Context, actions []map[string]any) error {
	payload, err := sonic.Marshal(map[string]any{"actions": actions})
	if err != nil {
		return search_errors.ClusterIOError("failed to encode alias actions: " + err.Error())
	}

	res, err := c.client.Indices.UpdateAliases(
		bytes.NewReader(payload),
		c.client.Indices.UpdateAliases.WithContext(ctx),
	)
	return closeAfter(clusterError("update aliases", "", res, err), res)
}

func (c *esCluster) PutAlias(ctx context.Context, index string, name string) error {
	res, err := c.client.Indices.PutAlias(
		[]string{index},
		name,
		c.client.Indices.PutAlias.WithContext(ctx),
	)
	return closeAfter(clusterError("put alias "+name, index, res, err), res)
}

func (c *esCluster) IndexExists(ctx context.Context, index string) (bool, error) {
	res, err := c.client.Indices.Exists(
		[]string{index},
		c.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, search_errors.ClusterIOError("index exists check failed for " + index + ": " + err.Error())
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case 200:
		return true, nil
	case 404:
		return false, nil
	default:
		return false, search_errors.ClusterIOError("index exists check failed for " + index + ": " + res.Status())
	}
}

func (c *esCluster) IndexDocument(ctx context.Context, index string, id string, doc any) error {
	payload, err := sonic.Marshal(doc)
	if err != nil {
		return search_errors.ClusterIOError("failed to encode document " + id + ": " + err.Error())
	}

	res, err := c.client.Index(
		index,
		bytes.NewReader(payload),
		c.client.Index.WithDocumentID(id),
		c.client.Index.WithRefresh("true"),
		c.client.Index.WithContext(ctx),
	)
	return closeAfter(clusterError("index document "+id, index, res, err), res)
}

func (c *esCluster) UpdateDocument(ctx context.Context, index string, id string, partial any) error {
	payload, err := sonic.Marshal(map[string]any{"doc": partial})
	if err != nil {
		return search_errors.ClusterIOError("failed to encode partial document " + id + ": " + err.Error())
	}

	res, err := c.client.Update(
		index,
		id,
		bytes.NewReader(payload),
		c.client.Update.WithRefresh("true"),
		c.client.Update.WithContext(ctx),
	)
	if err == nil && res != nil && res.StatusCode == 404 {
		defer res.Body.Close()
		return search_errors.NotFoundError("document " + id + " not found in " + index)
	}
	return closeAfter(clusterError("update document "+id, index, res, err), res)
}

func (c *esCluster) Search(ctx context.Context, index string, body map[string]any) ([]byte, error) {
	payload, err := sonic.Marshal(body)
	if err != nil {
		return nil, search_errors.ClusterIOError("failed to encode search body: " + err.Error())
	}

	res, err := c.client.Search(
		c.client.Search.WithIndex(index),
		c.client.Search.WithBody(bytes.NewReader(payload)),
		c.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, search_errors.ClusterIOError("search failed for " + index + ": " + err.Error())
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, search_errors.ClusterIOError("search failed for " + index + ": " + res.Status())
	}

	return io.ReadAll(res.Body)
}

var countPool fastjson.ParserPool

func (c *esCluster) Count(ctx context.Context, index string) (int64, error) {
	res, err := c.client.Count(
		c.client.Count.WithIndex(index),
		c.client.Count.WithContext(ctx),
	)
	if err != nil {
		return 0, search_errors.ClusterIOError("count failed for " + index + ": " + err.Error())
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, search_errors.ClusterIOError("count failed for " + index + ": " + res.Status())
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, search_errors.ClusterIOError("failed to read count response for " + index + ": " + err.Error())
	}

	parser := countPool.Get()
	defer countPool.Put(parser)

	v, err := parser.ParseBytes(raw)
	if err != nil {
		return 0, search_errors.ClusterIOError("failed to parse count response for " + index + ": " + err.Error())
	}

	return v.GetInt64("count"), nil
}

func (c *esCluster) Refresh(ctx context.Context, index string) error {
	res, err := c.client.Indices.Refresh(
		c.client.Indices.Refresh.WithIndex(index),
		c.client.Indices.Refresh.WithContext(ctx),
	)
	return closeAfter(clusterError("refresh", index, res, err), res)
}

// clusterError maps transport failures and non-2xx responses to a
// ClusterIOError. The response body is left open for the caller.
func clusterError(operation string, index string, res *esapi.Response, err error) error {
	target := ""
	if index != "" {
		target = " for " + index
	}

	if err != nil {
		return search_errors.ClusterIOError(operation + " failed" + target + ": " + err.Error())
	}

	if res.IsError() {
		return search_errors.ClusterIOError(operation + " failed" + target + ": " + res.Status())
	}

	return nil
}

func closeAfter(err error, res *esapi.Response) error {
	if res != nil && res.Body != nil {
		res.Body.Close()
	}
	return err
}
