package vectordb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var qdrantTracer = otel.Tracer("ragd.vectordb.qdrant")

// QdrantConfig holds connection settings for the Qdrant gRPC client.
// Port is the gRPC port (6334 by default), not the HTTP REST port.
type QdrantConfig struct {
	Host           string
	Port           int
	Distance       qdrant.Distance
	UseTLS         bool
	MaxRetries     int
	RetryBackoff   time.Duration
	MaxMessageSize int
}

// ApplyDefaults fills unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Distance == 0 {
		c.Distance = qdrant.Distance_Cosine
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// IsTransientError reports whether a gRPC error is worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantProvider implements Provider over Qdrant's native gRPC transport.
// gRPC avoids the HTTP layer's payload size limit, which matters when
// upserting large chunk batches.
type QdrantProvider struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger
}

// NewQdrantProvider connects to Qdrant and verifies the connection with a
// health check.
func NewQdrantProvider(config QdrantConfig, logger *zap.Logger) (*QdrantProvider, error) {
	config.ApplyDefaults()

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	p := &QdrantProvider{client: client, config: config, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}
	return p, nil
}

// Close closes the gRPC connection.
func (p *QdrantProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// retry runs op with exponential backoff on transient errors.
func (p *QdrantProvider) retry(ctx context.Context, name string, op func() error) error {
	backoff := p.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !IsTransientError(err) {
			return fmt.Errorf("%s failed: %w", name, err)
		}
		if attempt == p.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", name, p.config.MaxRetries, err)
		}
		p.logger.Warn("transient qdrant error, retrying",
			zap.String("operation", name),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", name, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// CreateCollection ensures the collection exists, dropping it first when
// reset is requested. Creating an existing collection is a no-op.
func (p *QdrantProvider) CreateCollection(ctx context.Context, name string, vectorSize int, reset bool) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantProvider.CreateCollection")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("vector_size", vectorSize),
		attribute.Bool("reset", reset),
	)

	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	exists, err := p.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		if !reset {
			return nil
		}
		if err := p.DeleteCollection(ctx, name); err != nil {
			return err
		}
	}

	err = p.retry(ctx, "create_collection", func() error {
		return p.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: p.config.Distance,
			}),
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "created")
	return nil
}

// CollectionExists checks collection existence.
func (p *QdrantProvider) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}
	var exists bool
	err := p.retry(ctx, "collection_exists", func() error {
		ok, err := p.client.CollectionExists(ctx, name)
		if err != nil {
			return err
		}
		exists = ok
		return nil
	})
	return exists, err
}

// ListCollections returns all collection names.
func (p *QdrantProvider) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	err := p.retry(ctx, "list_collections", func() error {
		res, err := p.client.ListCollections(ctx)
		if err != nil {
			return err
		}
		names = res
		return nil
	})
	return names, err
}

// CollectionInfo returns record count and vector size for a collection.
func (p *QdrantProvider) CollectionInfo(ctx context.Context, name string) (*CollectionInfo, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}

	var info *CollectionInfo
	err := p.retry(ctx, "collection_info", func() error {
		res, err := p.client.GetCollectionInfo(ctx, name)
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
				return ErrCollectionNotFound
			}
			return err
		}
		count := 0
		if res.PointsCount != nil {
			count = int(*res.PointsCount)
		}
		size := 0
		if params := res.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
			size = int(params.Size)
		}
		info = &CollectionInfo{Name: name, RecordCount: count, VectorSize: size}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// DeleteCollection drops a collection. Missing collections are ignored.
func (p *QdrantProvider) DeleteCollection(ctx context.Context, name string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantProvider.DeleteCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	return p.retry(ctx, "delete_collection", func() error {
		return p.client.DeleteCollection(ctx, name)
	})
}

// InsertMany upserts records as points with UUID identifiers. Text and
// metadata travel in the payload.
func (p *QdrantProvider) InsertMany(ctx context.Context, name string, records []Record) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantProvider.InsertMany")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("record_count", len(records)),
	)

	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		payload := map[string]*qdrant.Value{
			"text": {Kind: &qdrant.Value_StringValue{StringValue: r.Text}},
		}
		for k, v := range r.Metadata {
			switch val := v.(type) {
			case string:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
			case int:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
			case int64:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
			case float64:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
			case bool:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
			}
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.New().String()),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: payload,
		}
	}

	err := p.retry(ctx, "upsert", func() error {
		_, err := p.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "upserted")
	return nil
}

// Search returns the nearest records to the query vector.
func (p *QdrantProvider) Search(ctx context.Context, name string, vector []float32, limit int) ([]SearchResult, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantProvider.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("limit", limit),
	)

	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	var points []*qdrant.ScoredPoint
	err := p.retry(ctx, "search", func() error {
		res, err := p.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: name,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(limit)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := make([]SearchResult, len(points))
	for i, pt := range points {
		r := SearchResult{Score: pt.Score}
		if pt.Payload != nil {
			r.Metadata = make(map[string]any)
			for k, v := range pt.Payload {
				switch val := v.Kind.(type) {
				case *qdrant.Value_StringValue:
					if k == "text" {
						r.Text = val.StringValue
					} else {
						r.Metadata[k] = val.StringValue
					}
				case *qdrant.Value_IntegerValue:
					r.Metadata[k] = val.IntegerValue
				case *qdrant.Value_DoubleValue:
					r.Metadata[k] = val.DoubleValue
				case *qdrant.Value_BoolValue:
					r.Metadata[k] = val.BoolValue
				}
			}
		}
		results[i] = r
	}
	span.SetAttributes(attribute.Int("result_count", len(results)))
	span.SetStatus(codes.Ok, "searched")
	return results, nil
}

var _ Provider = (*QdrantProvider)(nil)
