package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	// vectorName is the named vector holding chunk embeddings.
	vectorName = "content"

	upsertBatchSize = 100

	payloadRecordID = "record_id"
	payloadText     = "text"
	payloadMetadata = "metadata"
	payloadSeq      = "seq"
)

// QdrantConfig holds connection settings for a Qdrant server.
type QdrantConfig struct {
	Host   string
	Port   int // gRPC port, usually 6334
	APIKey string
	UseTLS bool
}

// Qdrant is an Index backed by a Qdrant server over gRPC.
type Qdrant struct {
	client *qdrant.Client
	logger *slog.Logger
}

// NewQdrant connects to Qdrant and fails fast if it stays unreachable
// after a bounded retry.
func NewQdrant(ctx context.Context, cfg QdrantConfig, logger *slog.Logger) (*Qdrant, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Create gRPC client
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	// Verify connectivity with retry
	q := &Qdrant{client: client, logger: logger}
	if err := q.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return q, nil
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

func (q *Qdrant) healthCheckWithRetry(ctx context.Context) error {
	notify := func(err error, wait time.Duration) {
		q.logger.Warn("qdrant not ready, retrying", "error", err, "wait", wait)
	}
	return backoff.RetryNotify(func() error {
		return q.Health(ctx)
	}, backoff.WithContext(newBackoff(), ctx), notify)
}

// Health performs a single health check against Qdrant.
func (q *Qdrant) Health(ctx context.Context) (err error) {
	defer wrapTimeout(ctx, &err)
	result, err := q.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// CreateCollection creates a collection with a named cosine vector and a
// keyword index on the source field.
func (q *Qdrant) CreateCollection(ctx context.Context, name string, dim int) (err error) {
	defer wrapTimeout(ctx, &err)
	if dim <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dim)
	}

	// Check if collection exists
	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if exists {
		existing, err := q.dimension(ctx, name)
		if err != nil {
			return err
		}
		if existing != dim {
			return fmt.Errorf("%w: collection %q has dimension %d, requested %d",
				ErrDimensionMismatch, name, existing, dim)
		}
		return nil
	}

	// Create collection with a named vector using cosine distance
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Create payload index on source for filtered lookups
	_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: name,
		FieldName:      payloadMetadata + ".source",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create source index: %w", err)
	}

	q.logger.Info("created qdrant collection", "collection", name, "dimension", dim)
	return nil
}

func (q *Qdrant) dimension(ctx context.Context, collection string) (int, error) {
	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	info, err := q.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection: %w", err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParamsMap().GetMap()[vectorName]
	if params == nil {
		return 0, fmt.Errorf("collection %s has no %q vector", collection, vectorName)
	}
	return int(params.GetSize()), nil
}

// pointID maps a record ID onto a Qdrant point ID. Qdrant only accepts
// UUIDs or integers, so other IDs are hashed into a name-based UUID.
func pointID(id string) *qdrant.PointId {
	if u, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(u.String())
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String())
}

// existingSeqs returns the stored insertion sequence for ids already present.
func (q *Qdrant) existingSeqs(ctx context.Context, collection string, records []Record) (map[string]int64, error) {
	ids := make([]*qdrant.PointId, len(records))
	for i, rec := range records {
		ids[i] = pointID(rec.ID)
	}
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayloadInclude(payloadRecordID, payloadSeq),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load existing points: %w", err)
	}
	seqs := make(map[string]int64, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		seqs[payload[payloadRecordID].GetStringValue()] = payload[payloadSeq].GetIntegerValue()
	}
	return seqs, nil
}

func (q *Qdrant) Upsert(ctx context.Context, collection string, records []Record) (err error) {
	defer wrapTimeout(ctx, &err)
	if len(records) == 0 {
		return nil
	}
	dim, err := q.dimension(ctx, collection)
	if err != nil {
		return err
	}
	if err := checkDimensions(records, dim); err != nil {
		return err
	}

	// Existing points keep their insertion sequence
	seqs, err := q.existingSeqs(ctx, collection, records)
	if err != nil {
		return err
	}
	next := time.Now().UnixNano()

	points := make([]*qdrant.PointStruct, len(records))
	for i, rec := range records {
		seq, ok := seqs[rec.ID]
		if !ok {
			seq = next + int64(i)
		}
		meta := rec.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		payload, err := qdrant.TryValueMap(map[string]any{
			payloadRecordID: rec.ID,
			payloadText:     rec.Text,
			payloadSeq:      seq,
			payloadMetadata: meta,
		})
		if err != nil {
			return fmt.Errorf("record %s: invalid payload: %w", rec.ID, err)
		}
		points[i] = &qdrant.PointStruct{
			Id: pointID(rec.ID),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
				vectorName: qdrant.NewVector(rec.Vector...),
			}),
			Payload: payload,
		}
	}

	// Upsert in batches
	for i := 0; i < len(points); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(points))
		if err := q.upsertWithRetry(ctx, collection, points[i:end]); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

func (q *Qdrant) upsertWithRetry(ctx context.Context, collection string, points []*qdrant.PointStruct) error {
	wait := true
	return backoff.Retry(func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           &wait,
			Points:         points,
		})
		return err
	}, backoff.WithContext(newBackoff(), ctx))
}

func (q *Qdrant) Query(ctx context.Context, collection string, vector []float32, k int) (_ []Result, err error) {
	defer wrapTimeout(ctx, &err)
	dim, err := q.dimension(ctx, collection)
	if err != nil {
		return nil, err
	}
	if err := checkQuery(vector, dim, k); err != nil {
		return nil, err
	}
	if k == 0 {
		return []Result{}, nil
	}

	// Over-fetch so equal scores at the cut-off can be re-ordered by seq.
	using := vectorName
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Using:          &using,
		Limit:          qdrant.PtrOf(uint64(2*k + 8)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}

	ranked := make([]rankedResult, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		var vec []float32
		if named := p.GetVectors().GetVectors().GetVectors()[vectorName]; named != nil {
			vec = named.GetData()
		}
		meta, _ := valueToAny(payload[payloadMetadata]).(map[string]any)
		if meta == nil {
			meta = map[string]any{}
		}
		ranked = append(ranked, rankedResult{
			Result: Result{
				Record: Record{
					ID:       payload[payloadRecordID].GetStringValue(),
					Vector:   vec,
					Text:     payload[payloadText].GetStringValue(),
					Metadata: meta,
				},
				Score: float64(p.GetScore()),
			},
			seq: payload[payloadSeq].GetIntegerValue(),
		})
	}
	return rank(ranked, k), nil
}

func (q *Qdrant) Count(ctx context.Context, collection string) (_ int, err error) {
	defer wrapTimeout(ctx, &err)
	if _, err := q.dimension(ctx, collection); err != nil {
		return 0, err
	}
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(n), nil
}

// Close closes the Qdrant client connection.
func (q *Qdrant) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}

// valueToAny converts a payload value back into plain Go values.
func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_StructValue:
		out := make(map[string]any, len(kind.StructValue.GetFields()))
		for k, fv := range kind.StructValue.GetFields() {
			out[k] = valueToAny(fv)
		}
		return out
	case *qdrant.Value_ListValue:
		out := make([]any, 0, len(kind.ListValue.GetValues()))
		for _, lv := range kind.ListValue.GetValues() {
			out = append(out, valueToAny(lv))
		}
		return out
	default:
		return nil
	}
}
