// Package qdrant stores sessions as points in a Qdrant collection.
//
// Every chunk becomes one point carrying its session ID, position, text and
// expiry in the payload. Sessions are rebuilt by scrolling the points that
// match a session ID; expired points are deleted by a range filter.
//
// Qdrant keeps vectors as float32 and normalises them for cosine distance,
// so a loaded session's embeddings are not bit-identical to the saved ones.
// Chunks whose scores differ only in the last float64 digits may swap places
// after a round trip.
package qdrant

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	qc "github.com/qdrant/go-client/qdrant"

	"ragcore/internal/domain"
	"ragcore/internal/vectorstore"
)

// DefaultCollection is the Qdrant collection used when none is configured.
const DefaultCollection = "ragcore_chunks"

const (
	fieldSession   = "session_id"
	fieldIndex     = "index"
	fieldText      = "text"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
)

// pointsClient is the subset of *qc.Client the store uses.
type pointsClient interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	GetCollectionInfo(ctx context.Context, name string) (*qc.CollectionInfo, error)
	CreateCollection(ctx context.Context, req *qc.CreateCollection) error
	CreateFieldIndex(ctx context.Context, req *qc.CreateFieldIndexCollection) (*qc.UpdateResult, error)
	Upsert(ctx context.Context, req *qc.UpsertPoints) (*qc.UpdateResult, error)
	Count(ctx context.Context, req *qc.CountPoints) (uint64, error)
	Scroll(ctx context.Context, req *qc.ScrollPoints) ([]*qc.RetrievedPoint, error)
	Delete(ctx context.Context, req *qc.DeletePoints) (*qc.UpdateResult, error)
	Close() error
}

// Config configures the Qdrant store.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
	// Collection defaults to DefaultCollection.
	Collection string
	// TTL defaults to vectorstore.DefaultTTL.
	TTL time.Duration
	// CleanupInterval defaults to vectorstore.DefaultCleanupInterval; a
	// negative interval disables the janitor.
	CleanupInterval time.Duration
	Logger          *slog.Logger
}

// Storage is a vectorstore.Storage backed by Qdrant's gRPC API.
type Storage struct {
	client     pointsClient
	collection string
	ttl        time.Duration
	now        func() time.Time
	logger     *slog.Logger

	initMu sync.Mutex
	// dimension is the collection's vector size, 0 until first checked.
	dimension int

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewStorage connects to Qdrant. The collection is created on first Save.
func NewStorage(cfg Config) (*Storage, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	client, err := qc.NewClient(&qc.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return newStorage(client, cfg, time.Now), nil
}

func newStorage(client pointsClient, cfg Config, now func() time.Time) *Storage {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.TTL <= 0 {
		cfg.TTL = vectorstore.DefaultTTL
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = vectorstore.DefaultCleanupInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	s := &Storage{
		client:     client,
		collection: cfg.Collection,
		ttl:        cfg.TTL,
		now:        now,
		logger:     cfg.Logger,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go s.janitor(cfg.CleanupInterval)
	} else {
		close(s.done)
	}
	return s
}

// ensureCollection creates the collection with cosine distance if missing
// and checks that its vector size matches dimension.
func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.dimension == 0 {
		size, err := s.prepareCollection(ctx, dimension)
		if err != nil {
			return err
		}
		s.dimension = size
	}
	if s.dimension != dimension {
		return fmt.Errorf("%w: collection %s holds %d-dimensional vectors, got %d",
			domain.ErrDimensionMismatch, s.collection, s.dimension, dimension)
	}
	return nil
}

// prepareCollection returns the vector size of the collection, creating it
// with dimension if it does not exist yet.
func (s *Storage) prepareCollection(ctx context.Context, dimension int) (int, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("checking collection %s: %w", s.collection, err)
	}
	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.collection)
		if err != nil {
			return 0, fmt.Errorf("reading collection %s: %w", s.collection, err)
		}
		return int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()), nil
	}
	err = s.client.CreateCollection(ctx, &qc.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
			Size:     uint64(dimension),
			Distance: qc.Distance_Cosine,
		}),
	})
	if err != nil {
		return 0, fmt.Errorf("creating collection %s: %w", s.collection, err)
	}
	_, err = s.client.CreateFieldIndex(ctx, &qc.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      fieldSession,
		FieldType:      qc.PtrOf(qc.FieldType_FieldTypeKeyword),
	})
	if err != nil {
		return 0, fmt.Errorf("indexing %s: %w", fieldSession, err)
	}
	s.logger.Info("qdrant collection created", "collection", s.collection, "dimension", dimension)
	return dimension, nil
}

func (s *Storage) Save(ctx context.Context, c *domain.Collection) (vectorstore.Session, error) {
	if c.Len() == 0 {
		return vectorstore.Session{}, errors.New("cannot save an empty collection")
	}
	if err := s.ensureCollection(ctx, c.Dimension()); err != nil {
		return vectorstore.Session{}, err
	}
	now := s.now()
	sess := vectorstore.Session{
		ID:         uuid.NewString(),
		Collection: c,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	_, err := s.client.Upsert(ctx, &qc.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qc.PtrOf(true),
		Points:         toPoints(sess),
	})
	if err != nil {
		return vectorstore.Session{}, fmt.Errorf("upserting session %s: %w", sess.ID, err)
	}
	return sess, nil
}

func (s *Storage) Load(ctx context.Context, id string) (vectorstore.Session, error) {
	filter := liveSessionFilter(id, s.now())
	n, err := s.client.Count(ctx, &qc.CountPoints{
		CollectionName: s.collection,
		Filter:         filter,
		Exact:          qc.PtrOf(true),
	})
	if err != nil {
		return vectorstore.Session{}, fmt.Errorf("counting session %s: %w", id, err)
	}
	if n == 0 {
		return vectorstore.Session{}, vectorstore.ErrNotFound
	}
	points, err := s.client.Scroll(ctx, &qc.ScrollPoints{
		CollectionName: s.collection,
		Filter:         filter,
		Limit:          qc.PtrOf(uint32(n)),
		WithPayload:    qc.NewWithPayload(true),
		WithVectors:    qc.NewWithVectors(true),
	})
	if err != nil {
		return vectorstore.Session{}, fmt.Errorf("scrolling session %s: %w", id, err)
	}
	return fromPoints(id, points)
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	filter := liveSessionFilter(id, s.now())
	n, err := s.client.Count(ctx, &qc.CountPoints{
		CollectionName: s.collection,
		Filter:         filter,
		Exact:          qc.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("counting session %s: %w", id, err)
	}
	if n == 0 {
		return vectorstore.ErrNotFound
	}
	_, err = s.client.Delete(ctx, &qc.DeletePoints{
		CollectionName: s.collection,
		Wait:           qc.PtrOf(true),
		Points: qc.NewPointsSelectorFilter(&qc.Filter{
			Must: []*qc.Condition{qc.NewMatch(fieldSession, id)},
		}),
	})
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// Purge deletes every point whose session has expired.
func (s *Storage) Purge(ctx context.Context) error {
	s.initMu.Lock()
	ready := s.dimension > 0
	s.initMu.Unlock()
	if !ready {
		exists, err := s.client.CollectionExists(ctx, s.collection)
		if err != nil || !exists {
			return err
		}
	}
	_, err := s.client.Delete(ctx, &qc.DeletePoints{
		CollectionName: s.collection,
		Wait:           qc.PtrOf(true),
		Points:         qc.NewPointsSelectorFilter(expiredFilter(s.now())),
	})
	if err != nil {
		return fmt.Errorf("purging expired sessions: %w", err)
	}
	return nil
}

// Close stops the janitor and closes the gRPC connection.
func (s *Storage) Close() error {
	first := false
	s.stopOnce.Do(func() {
		close(s.stop)
		first = true
	})
	<-s.done
	if !first {
		return nil
	}
	return s.client.Close()
}

func (s *Storage) janitor(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			if err := s.Purge(ctx); err != nil {
				s.logger.Warn("qdrant cleanup failed", "error", err)
			}
			cancel()
		}
	}
}

func liveSessionFilter(id string, now time.Time) *qc.Filter {
	return &qc.Filter{
		Must: []*qc.Condition{
			qc.NewMatch(fieldSession, id),
			qc.NewRange(fieldExpiresAt, &qc.Range{Gt: qc.PtrOf(float64(now.UnixMilli()))}),
		},
	}
}

func expiredFilter(now time.Time) *qc.Filter {
	return &qc.Filter{
		Must: []*qc.Condition{
			qc.NewRange(fieldExpiresAt, &qc.Range{Lte: qc.PtrOf(float64(now.UnixMilli()))}),
		},
	}
}

func toPoints(sess vectorstore.Session) []*qc.PointStruct {
	points := make([]*qc.PointStruct, 0, sess.Collection.Len())
	for _, ch := range sess.Collection.Chunks() {
		v := make([]float32, len(ch.Embedding))
		for i, x := range ch.Embedding {
			v[i] = float32(x)
		}
		points = append(points, &qc.PointStruct{
			Id:      qc.NewID(uuid.NewString()),
			Vectors: qc.NewVectors(v...),
			Payload: qc.NewValueMap(map[string]any{
				fieldSession:   sess.ID,
				fieldIndex:     int64(ch.Index),
				fieldText:      ch.Text,
				fieldCreatedAt: sess.CreatedAt.UnixMilli(),
				fieldExpiresAt: sess.ExpiresAt.UnixMilli(),
			}),
		})
	}
	return points
}

// fromPoints rebuilds a session from its points, ordered by chunk index.
func fromPoints(id string, points []*qc.RetrievedPoint) (vectorstore.Session, error) {
	if len(points) == 0 {
		return vectorstore.Session{}, vectorstore.ErrNotFound
	}
	points = slices.Clone(points)
	slices.SortFunc(points, func(a, b *qc.RetrievedPoint) int {
		return cmp.Compare(a.GetPayload()[fieldIndex].GetIntegerValue(), b.GetPayload()[fieldIndex].GetIntegerValue())
	})

	texts := make([]string, len(points))
	vectors := make([][]float64, len(points))
	for i, p := range points {
		texts[i] = p.GetPayload()[fieldText].GetStringValue()
		data := vectorData(p)
		v := make([]float64, len(data))
		for j, x := range data {
			v[j] = float64(x)
		}
		vectors[i] = v
	}
	c, err := domain.NewCollection(texts, vectors)
	if err != nil {
		return vectorstore.Session{}, fmt.Errorf("rebuilding session %s: %w", id, err)
	}
	payload := points[0].GetPayload()
	return vectorstore.Session{
		ID:         id,
		Collection: c,
		CreatedAt:  time.UnixMilli(payload[fieldCreatedAt].GetIntegerValue()),
		ExpiresAt:  time.UnixMilli(payload[fieldExpiresAt].GetIntegerValue()),
	}, nil
}

func vectorData(p *qc.RetrievedPoint) []float32 {
	out := p.GetVectors().GetVector()
	if dense := out.GetDense().GetData(); len(dense) > 0 {
		return dense
	}
	return out.GetData()
}

var _ vectorstore.Storage = (*Storage)(nil)
