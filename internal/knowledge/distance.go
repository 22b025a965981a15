package knowledge

import (
	"fmt"
	"math"
	"sort"

	"github.com/aihub/chatbot-go/internal/models"
)

// L2Distance 欧氏距离，越小越相似
func L2Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// ScoredChunk 带距离的候选知识块
type ScoredChunk struct {
	Chunk    models.PreMessage
	Distance float64
}

// SelectCandidates 重新计算距离，过滤 distance <= maxDistance，按距离升序取前 topK。
// 未向量化或维度不一致的块被跳过；距离相同时保持输入顺序。
func SelectCandidates(query []float32, chunks []models.PreMessage, maxDistance float64, topK int) []ScoredChunk {
	if topK <= 0 || len(query) == 0 {
		return nil
	}

	scored := make([]ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		vec := c.Vector()
		if vec == nil {
			continue
		}
		d, err := L2Distance(query, vec)
		if err != nil || d > maxDistance {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: c, Distance: d})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Distance < scored[j].Distance
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// OrderRequired 必选块按 order 降序
func OrderRequired(required []models.PreMessage) []models.PreMessage {
	out := make([]models.PreMessage, len(required))
	copy(out, required)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order > out[j].Order
	})
	return out
}
