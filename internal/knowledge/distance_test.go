package knowledge

import (
	"math"
	"testing"

	"github.com/aihub/chatbot-go/internal/models"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkAt(order int, vec ...float32) models.PreMessage {
	v := pgvector.NewVector(vec)
	return models.PreMessage{Order: order, UserMessage: "chunk", Embedding: &v}
}

func TestL2Distance(t *testing.T) {
	d, err := L2Distance([]float32{0, 0}, []float32{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-9)

	d, err = L2Distance([]float32{1, 2, 3}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = L2Distance([]float32{1}, []float32{1, 2})
	assert.Error(t, err)
}

func TestSelectCandidates_FilterSortLimit(t *testing.T) {
	query := []float32{0, 0}
	chunks := []models.PreMessage{
		chunkAt(3, 3, 0),   // 3.0
		chunkAt(1, 0.5, 0), // 0.5
		chunkAt(2, 0, 1),   // 1.0
		{Order: 4, UserMessage: "not embedded"},
		chunkAt(5, 1, 1, 1), // wrong dimension
	}

	got := SelectCandidates(query, chunks, 2.0, 3)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Chunk.Order)
	assert.InDelta(t, 0.5, got[0].Distance, 1e-9)
	assert.Equal(t, 2, got[1].Chunk.Order)
	assert.InDelta(t, 1.0, got[1].Distance, 1e-9)
}

func TestSelectCandidates_Budget(t *testing.T) {
	query := []float32{0}
	var chunks []models.PreMessage
	for i := 0; i < 20; i++ {
		chunks = append(chunks, chunkAt(i, float32(i)/10))
	}

	for topK := -1; topK <= 6; topK++ {
		got := SelectCandidates(query, chunks, 100, topK)
		assert.LessOrEqual(t, len(got), int(math.Max(0, float64(topK))))
		for i := 1; i < len(got); i++ {
			assert.LessOrEqual(t, got[i-1].Distance, got[i].Distance)
		}
	}
}

func TestSelectCandidates_BoundaryInclusive(t *testing.T) {
	got := SelectCandidates([]float32{0}, []models.PreMessage{chunkAt(1, 2)}, 2.0, 1)
	require.Len(t, got, 1)
}

func TestSelectCandidates_StableOnTies(t *testing.T) {
	chunks := []models.PreMessage{chunkAt(7, 1), chunkAt(3, -1), chunkAt(5, 1)}
	got := SelectCandidates([]float32{0}, chunks, 5, 3)
	require.Len(t, got, 3)
	assert.Equal(t, []int{7, 3, 5}, []int{got[0].Chunk.Order, got[1].Chunk.Order, got[2].Chunk.Order})
}

func TestOrderRequired(t *testing.T) {
	in := []models.PreMessage{{Order: 2}, {Order: 10001}, {Order: 7}}
	out := OrderRequired(in)
	assert.Equal(t, []int{10001, 7, 2}, []int{out[0].Order, out[1].Order, out[2].Order})
	assert.Equal(t, 2, in[0].Order, "input must not be reordered")
}
