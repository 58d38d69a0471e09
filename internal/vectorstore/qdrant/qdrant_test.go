package qdrant

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	qc "github.com/qdrant/go-client/qdrant"

	"ragcore/internal/domain"
	"ragcore/internal/vectorstore"
)

// fakeClient keeps points in memory and evaluates the keyword match and
// range conditions the store sends.
type fakeClient struct {
	mu          sync.Mutex
	collections map[string]*qc.VectorParams
	points      []*qc.PointStruct
	creates     int
	closed      bool
	upsertErr   error
}

func newFakeClient() *fakeClient {
	return &fakeClient{collections: map[string]*qc.VectorParams{}}
}

func (f *fakeClient) CollectionExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeClient) GetCollectionInfo(_ context.Context, name string) (*qc.CollectionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &qc.CollectionInfo{
		Config: &qc.CollectionConfig{
			Params: &qc.CollectionParams{
				VectorsConfig: qc.NewVectorsConfig(f.collections[name]),
			},
		},
	}, nil
}

func (f *fakeClient) CreateCollection(_ context.Context, req *qc.CreateCollection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.collections[req.GetCollectionName()] = req.GetVectorsConfig().GetParams()
	return nil
}

func (f *fakeClient) CreateFieldIndex(context.Context, *qc.CreateFieldIndexCollection) (*qc.UpdateResult, error) {
	return &qc.UpdateResult{}, nil
}

func (f *fakeClient) Upsert(_ context.Context, req *qc.UpsertPoints) (*qc.UpdateResult, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, req.GetPoints()...)
	return &qc.UpdateResult{}, nil
}

func (f *fakeClient) Count(_ context.Context, req *qc.CountPoints) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.matching(req.GetFilter()))), nil
}

func (f *fakeClient) Scroll(_ context.Context, req *qc.ScrollPoints) ([]*qc.RetrievedPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*qc.RetrievedPoint
	// reversed, so the store has to sort by index itself
	matched := f.matching(req.GetFilter())
	for i := len(matched) - 1; i >= 0; i-- {
		p := matched[i]
		out = append(out, &qc.RetrievedPoint{
			Id:      p.GetId(),
			Payload: p.GetPayload(),
			Vectors: &qc.VectorsOutput{
				VectorsOptions: &qc.VectorsOutput_Vector{
					Vector: &qc.VectorOutput{Data: pointData(p)},
				},
			},
		})
	}
	return out, nil
}

func pointData(p *qc.PointStruct) []float32 {
	v := p.GetVectors().GetVector()
	if dense := v.GetDense().GetData(); len(dense) > 0 {
		return dense
	}
	return v.GetData()
}

func (f *fakeClient) Delete(_ context.Context, req *qc.DeletePoints) (*qc.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	filter := req.GetPoints().GetFilter()
	kept := f.points[:0]
	for _, p := range f.points {
		if !matches(p.GetPayload(), filter) {
			kept = append(kept, p)
		}
	}
	f.points = kept
	return &qc.UpdateResult{}, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func (f *fakeClient) matching(filter *qc.Filter) []*qc.PointStruct {
	var out []*qc.PointStruct
	for _, p := range f.points {
		if matches(p.GetPayload(), filter) {
			out = append(out, p)
		}
	}
	return out
}

func matches(payload map[string]*qc.Value, filter *qc.Filter) bool {
	for _, cond := range filter.GetMust() {
		field := cond.GetField()
		v := payload[field.GetKey()]
		if m := field.GetMatch(); m != nil && v.GetStringValue() != m.GetKeyword() {
			return false
		}
		if r := field.GetRange(); r != nil {
			x := float64(v.GetIntegerValue())
			if (r.Gt != nil && !(x > r.GetGt())) || (r.Lte != nil && !(x <= r.GetLte())) {
				return false
			}
		}
	}
	return true
}

var _ = Describe("Storage", func() {
	var (
		client *fakeClient
		store  *Storage
		now    time.Time
		ctx    context.Context
	)

	collection := func(texts ...string) *domain.Collection {
		vectors := make([][]float64, len(texts))
		for i := range texts {
			vectors[i] = []float64{float64(i), 1}
		}
		c, err := domain.NewCollection(texts, vectors)
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	BeforeEach(func() {
		ctx = context.Background()
		client = newFakeClient()
		now = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		store = newStorage(client, Config{TTL: time.Hour, CleanupInterval: -1}, func() time.Time { return now })
	})

	It("creates the collection once with the first dimension", func() {
		_, err := store.Save(ctx, collection("a.", "b."))
		Expect(err).NotTo(HaveOccurred())
		_, err = store.Save(ctx, collection("c."))
		Expect(err).NotTo(HaveOccurred())
		Expect(client.creates).To(Equal(1))
		params := client.collections[DefaultCollection]
		Expect(params.GetSize()).To(Equal(uint64(2)))
		Expect(params.GetDistance()).To(Equal(qc.Distance_Cosine))
	})

	It("rejects collections of another dimension", func() {
		_, err := store.Save(ctx, collection("a."))
		Expect(err).NotTo(HaveOccurred())

		wide, err := domain.NewCollection([]string{"b."}, [][]float64{{1, 2, 3}})
		Expect(err).NotTo(HaveOccurred())
		_, err = store.Save(ctx, wide)
		Expect(err).To(MatchError(domain.ErrDimensionMismatch))
		Expect(err.Error()).To(ContainSubstring(DefaultCollection))
		Expect(client.points).To(HaveLen(1))
	})

	It("checks the size of a collection that already exists", func() {
		client.collections[DefaultCollection] = &qc.VectorParams{Size: 1536, Distance: qc.Distance_Cosine}
		_, err := store.Save(ctx, collection("a."))
		Expect(err).To(MatchError(domain.ErrDimensionMismatch))
		Expect(client.creates).To(BeZero())
	})

	It("writes one point per chunk and rebuilds the session in order", func() {
		sess, err := store.Save(ctx, collection("first.", "second.", "third."))
		Expect(err).NotTo(HaveOccurred())
		Expect(client.points).To(HaveLen(3))

		got, err := store.Load(ctx, sess.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(sess.ID))
		Expect(got.Collection.Texts()).To(Equal([]string{"first.", "second.", "third."}))
		Expect(got.Collection.At(2).Embedding).To(Equal([]float64{2, 1}))
		Expect(got.ExpiresAt.Equal(now.Add(time.Hour))).To(BeTrue())
	})

	It("narrows embeddings to float32", func() {
		c, err := domain.NewCollection([]string{"a."}, [][]float64{{0.1, 0.2}})
		Expect(err).NotTo(HaveOccurred())
		sess, err := store.Save(ctx, c)
		Expect(err).NotTo(HaveOccurred())

		got, err := store.Load(ctx, sess.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Collection.At(0).Embedding).To(Equal([]float64{float64(float32(0.1)), float64(float32(0.2))}))
		Expect(got.Collection.At(0).Embedding[0]).NotTo(Equal(0.1))
	})

	It("keeps sessions apart", func() {
		a, _ := store.Save(ctx, collection("a."))
		b, _ := store.Save(ctx, collection("b1.", "b2."))
		got, err := store.Load(ctx, a.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Collection.Texts()).To(Equal([]string{"a."}))
		got, err = store.Load(ctx, b.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Collection.Len()).To(Equal(2))
	})

	It("returns ErrNotFound for unknown and expired sessions", func() {
		_, err := store.Load(ctx, "missing")
		Expect(err).To(MatchError(vectorstore.ErrNotFound))

		sess, _ := store.Save(ctx, collection("a."))
		now = now.Add(time.Hour)
		_, err = store.Load(ctx, sess.ID)
		Expect(err).To(MatchError(vectorstore.ErrNotFound))
	})

	It("deletes a session's points", func() {
		sess, _ := store.Save(ctx, collection("a.", "b."))
		other, _ := store.Save(ctx, collection("c."))
		Expect(store.Delete(ctx, sess.ID)).To(Succeed())
		Expect(client.points).To(HaveLen(1))
		Expect(store.Delete(ctx, sess.ID)).To(MatchError(vectorstore.ErrNotFound))
		_, err := store.Load(ctx, other.ID)
		Expect(err).NotTo(HaveOccurred())
	})

	It("purges expired points", func() {
		_, _ = store.Save(ctx, collection("old.", "older."))
		now = now.Add(30 * time.Minute)
		fresh, _ := store.Save(ctx, collection("fresh."))
		now = now.Add(45 * time.Minute)

		Expect(store.Purge(ctx)).To(Succeed())
		Expect(client.points).To(HaveLen(1))
		_, err := store.Load(ctx, fresh.ID)
		Expect(err).NotTo(HaveOccurred())
	})

	It("purges nothing before the collection exists", func() {
		Expect(store.Purge(ctx)).To(Succeed())
	})

	It("wraps upsert failures", func() {
		client.upsertErr = errors.New("unavailable")
		_, err := store.Save(ctx, collection("a."))
		Expect(err).To(MatchError(ContainSubstring("unavailable")))
	})

	It("closes the client once", func() {
		Expect(store.Close()).To(Succeed())
		Expect(store.Close()).To(Succeed())
		Expect(client.closed).To(BeTrue())
	})
})
