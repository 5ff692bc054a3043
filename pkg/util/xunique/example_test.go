package xunique_test

import (
	"context"
	"fmt"

	"github.com/omeyang/xunique/pkg/util/xunique"
)

func ExampleFactory_Get() {
	f, err := xunique.New[string](xunique.DefaultConfig())
	if err != nil {
		panic(err)
	}
	defer f.Close()

	ctx := context.Background()
	key := xunique.NewKey(xunique.Plain("user"), xunique.Plain(42))

	a, _ := f.Get(ctx, key, func() (string, error) { return "profile#1", nil })
	b, _ := f.Get(ctx, key, func() (string, error) { return "profile#2", nil })
	fmt.Println(a.Value(), b.Value(), a.Same(b))

	_ = a.Release()
	_ = b.Release()

	c, _ := f.Get(ctx, key, func() (string, error) { return "profile#3", nil })
	fmt.Println(c.Value())
	_ = c.Release()
	// Output:
	// profile#1 profile#1 true
	// profile#3
}

func ExampleKeepLast() {
	cfg := xunique.DefaultConfig()
	cfg.Retain = 2
	f, err := xunique.New[int](cfg)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	builds := 0
	get := func(k int) {
		r, err := f.Get(context.Background(), xunique.KeyOf(k), func() (int, error) {
			builds++
			return k * k, nil
		})
		if err != nil {
			panic(err)
		}
		_ = r.Release()
	}

	get(1)
	get(1) // 被保留，不重建
	fmt.Println("builds:", builds)

	get(2)
	get(3) // 保留集合已满，整体清空
	get(1)
	fmt.Println("builds:", builds)
	// Output:
	// builds: 1
	// builds: 4
}

func ExampleNewKey() {
	a, b := 7, 7
	k1 := xunique.NewKey(xunique.Plain("tenant"), xunique.Strong(&a))
	k2 := xunique.NewKey(xunique.Plain("tenant"), xunique.Strong(&b))
	fmt.Println(k1, k1.Equal(k2))
	// Output:
	// (tenant, 7) true
}
