package xunique

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// referent 是弱引用测试对象。含指针字段，不会被分配到共享的微小对象块中。
type referent struct {
	name string
	pad  [4]int64
}

// collect 反复 GC 直到 key 失效。
func collect(t *testing.T, key Key) {
	t.Helper()
	require.Eventually(t, func() bool {
		runtime.GC()
		return !key.Alive()
	}, 2*time.Second, 5*time.Millisecond, "weak referent was not collected")
}

// weakKey 构造 (Weak(&referent{name}), Plain(n))，调用返回后 referent 不再可达。
func weakKey(name string, n int) Key {
	r := &referent{name: name}
	k := NewKey(Weak(r), Plain(n))
	runtime.KeepAlive(r)
	return k
}
