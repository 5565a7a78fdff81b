package retrieval

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/v4/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeVectorStore implements VectorStore against a Pinecone index,
// grounded directly on the `pinecone` client usage in
// original_source/backend/app/db/vector_manager.py (OptimizedVectorDBManager),
// wired through the official github.com/pinecone-io/go-pinecone/v4 client
// (also present in the example pack via Tangerg-lynx/vectorstores).
type PineconeVectorStore struct {
	idx *pinecone.IndexConnection
}

// NewPineconeVectorStore wraps an already-open index connection.
func NewPineconeVectorStore(idx *pinecone.IndexConnection) *PineconeVectorStore {
	return &PineconeVectorStore{idx: idx}
}

func (s *PineconeVectorStore) Query(ctx context.Context, namespace string, vector []float32, topK int, filter Filters) ([]VectorHit, error) {
	req := &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeValues:   false,
		IncludeMetadata: true,
	}
	if len(filter) > 0 {
		f, err := structpb.NewStruct(filter)
		if err != nil {
			return nil, fmt.Errorf("build pinecone filter: %w", err)
		}
		req.MetadataFilter = f
	}

	res, err := s.idx.QueryByVectorValues(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("pinecone query in namespace %s: %w", namespace, err)
	}

	out := make([]VectorHit, 0, len(res.Matches))
	for _, m := range res.Matches {
		meta := map[string]any{}
		if m.Vector != nil && m.Vector.Metadata != nil {
			meta = m.Vector.Metadata.AsMap()
		}
		id := ""
		if m.Vector != nil {
			id = m.Vector.Id
		}
		out = append(out, VectorHit{ID: id, Score: float64(m.Score), Metadata: meta})
	}
	return out, nil
}

func (s *PineconeVectorStore) Upsert(ctx context.Context, namespace string, id string, vector []float32, metadata map[string]any) error {
	meta, err := structpb.NewStruct(metadata)
	if err != nil {
		return fmt.Errorf("build pinecone metadata: %w", err)
	}
	_, err = s.idx.UpsertVectors(ctx, []*pinecone.Vector{
		{Id: id, Values: &vector, Metadata: meta},
	})
	if err != nil {
		return fmt.Errorf("pinecone upsert in namespace %s: %w", namespace, err)
	}
	return nil
}

func (s *PineconeVectorStore) Ping(ctx context.Context) error {
	_, err := s.idx.DescribeIndexStats(ctx)
	return err
}
