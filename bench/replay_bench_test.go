package bench

import (
	"math/rand"
	"testing"

	"gridworld-rl/replay"
)

func filledBuffer(b *testing.B, capacity int) *replay.Buffer {
	b.Helper()
	buf, err := replay.NewBuffer(capacity, replay.DefaultConfig(), rand.New(rand.NewSource(1)))
	if err != nil {
		b.Fatalf("NewBuffer: %v", err)
	}
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < capacity; i++ {
		buf.Add(rng.Intn(100), rng.Intn(4), rng.Float32(), rng.Intn(100), false, rng.Float32()*2-1)
	}
	return buf
}

func BenchmarkBufferAdd(b *testing.B) {
	buf := filledBuffer(b, 10000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Add(i%100, i%4, 0.5, (i+1)%100, false, float32(i%7)-3)
	}
}

func benchSampleBatch(b *testing.B, capacity, batch int) {
	buf := filledBuffer(b, capacity)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		exps, _, _ := buf.SampleBatch(batch)
		if exps == nil {
			b.Fatalf("empty sample")
		}
	}
}

func BenchmarkSampleBatch_1k(b *testing.B) {
	benchSampleBatch(b, 1000, 32)
}

func BenchmarkSampleBatch_10k(b *testing.B) {
	benchSampleBatch(b, 10000, 32)
}

func BenchmarkUpdatePriorities(b *testing.B) {
	buf := filledBuffer(b, 10000)
	_, indices, _ := buf.SampleBatch(32)
	errs := make([]float32, len(indices))
	rng := rand.New(rand.NewSource(3))
	for i := range errs {
		errs[i] = rng.Float32()*2 - 1
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.UpdatePriorities(indices, errs)
	}
}
