package export

import (
	"context"

	"github.com/pkg/errors"
	"github.com/productsync/feedbatch"
	"github.com/productsync/feedbatch/catalog"
	"github.com/productsync/feedbatch/feed"
)

// Row one exported feed record. Field order matches the header and is the
// wire contract with the remote catalog consumer.
type Row struct {
	ID          int64   `order:"0" header:"id"`
	Title       string  `order:"1" header:"title"`
	Description string  `order:"2" header:"description"`
	Price       float64 `order:"3" header:"price" format:"%.2f"`
	Currency    string  `order:"4" header:"currency"`
	SKU         string  `order:"5" header:"sku"`
	StockQty    int     `order:"6" header:"stock_quantity"`
	Link        string  `order:"7" header:"link"`
	ImageLink   string  `order:"8" header:"image_link"`
}

// ProductFeedJob chained batch job exporting the product catalog as a CSV
// feed. Implements feedbatch.ChainedJob plus the start and end hooks.
type ProductFeedJob struct {
	source    *catalog.Source
	handler   *feed.Handler
	marshaler *feed.Marshaler
	batchSize int
	remote    feed.FileStorage
	remoteDir string
}

// NewProductFeedJob build the feed job over an item source and a file handler
func NewProductFeedJob(source *catalog.Source, handler *feed.Handler, batchSize int) (*ProductFeedJob, error) {
	if batchSize < 1 {
		return nil, errors.Errorf("batch size must be positive, got:%v", batchSize)
	}
	marshaler, err := feed.NewMarshaler(&Row{})
	if err != nil {
		return nil, err
	}
	return &ProductFeedJob{
		source:    source,
		handler:   handler,
		marshaler: marshaler,
		batchSize: batchSize,
	}, nil
}

// WithRemotePublish also copy the finished feed to a remote store after promote
func (job *ProductFeedJob) WithRemotePublish(store feed.FileStorage, remoteDir string) *ProductFeedJob {
	job.remote = store
	job.remoteDir = remoteDir
	return job
}

func (job *ProductFeedJob) Name() string {
	return "product_feed"
}

func (job *ProductFeedJob) PluginName() string {
	return "catalog-sync"
}

func (job *ProductFeedJob) BatchSize() int {
	return job.batchSize
}

// Handler the file handler owning this job's artifact
func (job *ProductFeedJob) Handler() *feed.Handler {
	return job.handler
}

// HandleStart prepare the output folder and a fresh temp file with the
// header row. Stale temp state from an aborted run is truncated away.
func (job *ProductFeedJob) HandleStart(ctx context.Context, args feedbatch.Args) error {
	if err := job.handler.PrepareFeedFolder(); err != nil {
		return err
	}
	if err := job.handler.CreateFreshTempFile(); err != nil {
		return err
	}
	header, err := job.marshaler.FormatHeader()
	if err != nil {
		return err
	}
	return job.handler.WriteToFeedTemporaryFile(header)
}

func (job *ProductFeedJob) GetItemsForBatch(ctx context.Context, window feedbatch.BatchWindow, args feedbatch.Args) ([]interface{}, error) {
	ids, err := job.source.ReadIDsPage(ctx, window.Limit, window.Offset)
	if err != nil {
		return nil, err
	}
	keys := make([]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = id
	}
	return keys, nil
}

func (job *ProductFeedJob) FilterItemsBeforeProcessing(ctx context.Context, keys []interface{}, args feedbatch.Args) ([]interface{}, error) {
	ids := make([]int64, 0, len(keys))
	for _, key := range keys {
		id, ok := key.(int64)
		if !ok {
			return nil, errors.Errorf("key type error, type:%T, value:%v", key, key)
		}
		ids = append(ids, id)
	}
	products, err := job.source.Materialize(ctx, ids)
	if err != nil {
		return nil, err
	}
	items := make([]interface{}, len(products))
	for i, p := range products {
		items[i] = p
	}
	return items, nil
}

// ProcessItem map one product to a feed record. Catalog entries missing
// required fields fail here and are skipped by the engine; hidden products
// are dropped without an error.
func (job *ProductFeedJob) ProcessItem(ctx context.Context, item interface{}, args feedbatch.Args) (interface{}, error) {
	product, ok := item.(*catalog.Product)
	if !ok {
		return nil, errors.Errorf("item type error, type:%T", item)
	}
	if !product.Visible {
		return nil, nil
	}
	if product.SKU == "" {
		return nil, errors.Errorf("product:%v has no sku", product.ID)
	}
	if product.Title == "" {
		return nil, errors.Errorf("product:%v has no title", product.ID)
	}
	return &Row{
		ID:          product.ID,
		Title:       product.Title,
		Description: product.Description,
		Price:       product.Price,
		Currency:    product.Currency,
		SKU:         product.SKU,
		StockQty:    product.StockQty,
		Link:        product.Permalink,
		ImageLink:   product.ImageURL,
	}, nil
}

func (job *ProductFeedJob) WriteRecords(ctx context.Context, records []interface{}, args feedbatch.Args) error {
	text, err := job.marshaler.FormatRows(records)
	if err != nil {
		return err
	}
	return job.handler.WriteToFeedTemporaryFile(text)
}

// HandleEnd promote the temp file to the live path, then write the checksum
// sidecar and publish remotely when configured.
func (job *ProductFeedJob) HandleEnd(ctx context.Context, args feedbatch.Args) error {
	if err := job.handler.ReplaceFeedFileWithTempFile(); err != nil {
		return err
	}
	if err := job.handler.WriteChecksumFile(); err != nil {
		return err
	}
	if job.remote != nil {
		return job.handler.PublishTo(job.remote, job.remoteDir)
	}
	return nil
}
