package xunique

import (
	"runtime"
	"testing"
	"time"
	"weak"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "plain", KindPlain.String())
	assert.Equal(t, "strong", KindStrong.String())
	assert.Equal(t, "weak", KindWeak.String())
	assert.Equal(t, "Kind(7)", Kind(7).String())
}

func TestComponents(t *testing.T) {
	n := 5
	r := &referent{name: "x"}

	tests := []struct {
		name string
		c    Component
		kind Kind
		want any
	}{
		{"plain", Plain(5), KindPlain, 5},
		{"strong", Strong(&n), KindStrong, 5},
		{"weak", Weak(r), KindWeak, *r},
		{"weak pointer", WeakPointer(weak.Make(r)), KindWeak, *r},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.c.Kind())
			assert.True(t, tt.c.Alive())
			v, ok := tt.c.Value()
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}
	runtime.KeepAlive(r)
}

func TestNilReferencePanics(t *testing.T) {
	var p *int
	assert.PanicsWithError(t, ErrNilReference.Error(), func() { Strong(p) })
	assert.PanicsWithError(t, ErrNilReference.Error(), func() { Weak(p) })
	assert.PanicsWithError(t, "xunique: nil reference component: index 1", func() {
		NewKey(Plain(1), nil)
	})
}

func TestKeyEqualityDereferences(t *testing.T) {
	a, b := 7, 7
	k1 := NewKey(Plain("user"), Strong(&a))
	k2 := NewKey(Plain("user"), Strong(&b))
	k3 := NewKey(Plain("user"), Plain(7))

	assert.True(t, k1.Equal(k2), "strong components compare referents, not addresses")
	assert.True(t, k1.Equal(k3), "component kind does not take part in equality")
	assert.Equal(t, k1.Hash(), k3.Hash())

	r1, r2 := &referent{name: "x"}, &referent{name: "x"}
	assert.True(t, NewKey(Weak(r1)).Equal(NewKey(Strong(r2))))
	r3 := &referent{name: "y"}
	assert.False(t, NewKey(Weak(r1)).Equal(NewKey(Weak(r3))))
	runtime.KeepAlive(r1)
	runtime.KeepAlive(r3)

	assert.False(t, k1.Equal(NewKey(Plain("user"))), "different arity")
	assert.False(t, k1.Equal(NewKey(Plain("user"), Plain(8))))
	assert.False(t, NewKey(Plain(1), Plain(2)).Equal(NewKey(Plain(2), Plain(1))), "order matters")
}

func TestZeroKey(t *testing.T) {
	var zero Key
	assert.True(t, zero.Equal(NewKey()))
	assert.True(t, NewKey().Equal(zero))
	assert.Equal(t, 0, zero.Len())
	assert.True(t, zero.Alive())
	assert.Equal(t, "()", zero.String())
}

func TestKeyAccessors(t *testing.T) {
	k := NewKey(Plain(1), Plain("a"))
	assert.Equal(t, 2, k.Len())
	assert.Equal(t, KindPlain, k.At(1).Kind())
	assert.Equal(t, "(1, a)", k.String())
	assert.True(t, KeyOf("a").Equal(NewKey(Plain("a"))))
	assert.Equal(t, KeyOf(3).Hash(), NewKey(Plain(3)).Hash())
}

func TestKeyBecomesDead(t *testing.T) {
	k := weakKey("x", 0)
	collect(t, k)

	assert.False(t, k.Alive())
	vals, ok := k.Values()
	assert.False(t, ok)
	assert.Nil(t, vals)
	assert.False(t, k.Equal(k), "a dead key equals nothing, itself included")
	assert.Equal(t, "(<dead>, 0)", k.String())

	assert.PanicsWithError(t, "xunique: weak key component is dead: index 0", func() {
		k.resolve()
	})
}

func TestNewKeyDeadComponentPanics(t *testing.T) {
	wp := func() weak.Pointer[referent] {
		return weak.Make(&referent{name: "gone"})
	}()
	require.Eventually(t, func() bool {
		runtime.GC()
		return wp.Value() == nil
	}, 2*time.Second, 5*time.Millisecond)

	assert.PanicsWithError(t, "xunique: weak key component is dead: index 1", func() {
		NewKey(Plain(0), WeakPointer(wp))
	})
}
