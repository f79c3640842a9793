package leaderboard

import (
	"context"
	"fmt"
	"testing"
)

func benchmarkStore(n int) *MemoryStore {
	store := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, _ = store.ApplyDelta(ctx, fmt.Sprintf("player-%06d", i), float64((i*7919)%10000))
	}
	return store
}

func BenchmarkApplyDelta(b *testing.B) {
	for _, size := range []int{1000, 10000, 100000} {
		b.Run(fmt.Sprintf("size-%d", size), func(b *testing.B) {
			store := benchmarkStore(size)
			ctx := context.Background()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = store.ApplyDelta(ctx, fmt.Sprintf("player-%06d", i%size), 1.0)
			}
		})
	}
}

func BenchmarkRank(b *testing.B) {
	for _, size := range []int{1000, 10000, 100000} {
		b.Run(fmt.Sprintf("size-%d", size), func(b *testing.B) {
			store := benchmarkStore(size)
			ctx := context.Background()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = store.Rank(ctx, fmt.Sprintf("player-%06d", i%size))
			}
		})
	}
}

func BenchmarkNeighbors(b *testing.B) {
	store := benchmarkStore(100000)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = store.Neighbors(ctx, fmt.Sprintf("player-%06d", i%100000), 25, 24)
	}
}

func BenchmarkTopN(b *testing.B) {
	store := benchmarkStore(100000)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.TopN(ctx, 10)
	}
}
