package xunique

import (
	"context"
	"strconv"
	"testing"
)

func benchmarkGetHit(b *testing.B, keyLock bool) {
	cfg := DefaultConfig()
	cfg.KeyLock = keyLock
	f, err := New[int](cfg)
	if err != nil {
		b.Fatal(err)
	}
	defer f.Close()

	ctx := context.Background()
	key := NewKey(Plain("bench"), Plain(1))
	held, err := f.Get(ctx, key, func() (int, error) { return 1, nil })
	if err != nil {
		b.Fatal(err)
	}
	defer held.Release()

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			r, err := f.Get(ctx, key, func() (int, error) { return 2, nil })
			if err != nil {
				b.Error(err)
				return
			}
			_ = r.Release()
		}
	})
}

func BenchmarkGetHit(b *testing.B)        { benchmarkGetHit(b, false) }
func BenchmarkGetHitKeyLock(b *testing.B) { benchmarkGetHit(b, true) }

func BenchmarkGetMissRetained(b *testing.B) {
	cfg := DefaultConfig()
	cfg.Retain = 256
	f, err := New[string](cfg)
	if err != nil {
		b.Fatal(err)
	}
	defer f.Close()

	ctx := context.Background()
	keys := make([]Key, 1024)
	for i := range keys {
		keys[i] = KeyOf(i)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := range b.N {
		k := keys[i%len(keys)]
		r, err := f.Get(ctx, k, func() (string, error) { return strconv.Itoa(i), nil })
		if err != nil {
			b.Fatal(err)
		}
		_ = r.Release()
	}
}

func BenchmarkNewKey(b *testing.B) {
	r := &referent{name: "bench"}
	b.ReportAllocs()
	for b.Loop() {
		_ = NewKey(Plain("tenant"), Plain(42), Weak(r))
	}
}
