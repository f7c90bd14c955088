package cart

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAddItem(t *testing.T) {
	s := NewStore()

	snap, err := s.AddItem("espresso", 2)
	require.NoError(t, err)
	assert.Equal(t, []LineItem{{ID: "espresso", Quantity: 2}}, snap.Items)

	snap, err = s.AddItem("latte", 1)
	require.NoError(t, err)
	snap, err = s.AddItem("espresso", 3)
	require.NoError(t, err)

	assert.Equal(t, []LineItem{
		{ID: "espresso", Quantity: 5},
		{ID: "latte", Quantity: 1},
	}, snap.Items, "existing id merges, insertion order kept")
}

func TestAddItem_Rejects(t *testing.T) {
	s := NewStore()

	_, err := s.AddItem("espresso", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = s.AddItem("espresso", -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = s.AddItem("  ", 1)
	assert.ErrorIs(t, err, ErrInvalidItemID)

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, uint64(0), s.Snapshot().Version)
}

func TestAddItem_QuantityOverflow(t *testing.T) {
	s := NewStore()
	_, err := s.AddItem("espresso", math.MaxInt)
	require.NoError(t, err)
	before := s.Snapshot()

	snap, err := s.AddItem("espresso", 1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, math.MaxInt, snap.Items[0].Quantity)
	assert.Equal(t, before.Version, snap.Version)

	snap = s.IncrementItemQuantity("espresso")
	assert.Equal(t, math.MaxInt, snap.Items[0].Quantity)
	assert.Equal(t, before.Version, snap.Version, "saturated increment is a no-op")
}

func TestDecrement_FloorsAtOne(t *testing.T) {
	s := NewStore()
	_, err := s.AddItem("mocha", 2)
	require.NoError(t, err)

	snap := s.DecrementItemQuantity("mocha")
	assert.Equal(t, 1, snap.Items[0].Quantity)

	before := snap.Version
	snap = s.DecrementItemQuantity("mocha")
	assert.Equal(t, 1, snap.Items[0].Quantity)
	assert.Equal(t, before, snap.Version, "no-op keeps the cart identity")
}

func TestIncrementAndRemove_Absent(t *testing.T) {
	s := NewStore()
	_, err := s.AddItem("mocha", 1)
	require.NoError(t, err)
	v := s.Snapshot().Version

	assert.Equal(t, v, s.IncrementItemQuantity("nope").Version)
	assert.Equal(t, v, s.DecrementItemQuantity("nope").Version)
	assert.Equal(t, v, s.RemoveItem("nope").Version)

	snap := s.RemoveItem("mocha")
	assert.True(t, snap.Empty())
	assert.Greater(t, snap.Version, v)
}

func TestCheckout_ConsumesItems(t *testing.T) {
	s := NewStore()
	_, _ = s.AddItem("a", 1)
	_, _ = s.AddItem("b", 2)

	got := s.Checkout()
	assert.Equal(t, []LineItem{{ID: "a", Quantity: 1}, {ID: "b", Quantity: 2}}, got)
	assert.Equal(t, 0, s.Len())
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := NewStore()
	snap, _ := s.AddItem("a", 1)
	snap.Items[0].Quantity = 99

	assert.Equal(t, 1, s.Snapshot().Items[0].Quantity)
}

func TestOnChange(t *testing.T) {
	s := NewStore()
	var seen []uint64
	s.OnChange(func(snap Snapshot) { seen = append(seen, snap.Version) })

	_, _ = s.AddItem("a", 1)
	s.IncrementItemQuantity("a")
	s.DecrementItemQuantity("a")
	s.DecrementItemQuantity("a") // floored, no change
	s.RemoveItem("a")

	assert.Equal(t, []uint64{1, 2, 3, 4}, seen)
}

func TestConcurrentMutations(t *testing.T) {
	s := NewStore()
	_, _ = s.AddItem("a", 1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncrementItemQuantity("a")
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, 51, snap.Items[0].Quantity)
	assert.Equal(t, uint64(51), snap.Version)
}

func TestAddEqualsRepeatedIncrement(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.IntRange(1, 50).Draw(t, "start")
		q := rapid.IntRange(1, 50).Draw(t, "q")

		added := NewStore()
		_, _ = added.AddItem("x", start)
		_, _ = added.AddItem("x", q)

		incremented := NewStore()
		_, _ = incremented.AddItem("x", start)
		for i := 0; i < q; i++ {
			incremented.IncrementItemQuantity("x")
		}

		if a, b := added.Snapshot().Items, incremented.Snapshot().Items; a[0] != b[0] {
			t.Fatalf("AddItem(x, %d) = %+v, increment %d times = %+v", q, a[0], q, b[0])
		}
	})
}

func TestInvariants(t *testing.T) {
	ids := []string{"a", "b", "c"}
	rapid.Check(t, func(t *rapid.T) {
		s := NewStore()
		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			id := rapid.SampledFrom(ids).Draw(t, "id")
			before := s.Len()
			op := rapid.IntRange(0, 3).Draw(t, "op")
			switch op {
			case 0:
				_, _ = s.AddItem(id, rapid.IntRange(1, 5).Draw(t, "qty"))
			case 1:
				s.IncrementItemQuantity(id)
			case 2:
				s.DecrementItemQuantity(id)
			case 3:
				s.RemoveItem(id)
			}

			snap := s.Snapshot()
			if op != 3 && len(snap.Items) < before {
				t.Fatalf("op %d reduced the line count from %d to %d", op, before, len(snap.Items))
			}
			seen := map[string]bool{}
			for _, it := range snap.Items {
				if it.Quantity < 1 {
					t.Fatalf("quantity below 1: %+v", it)
				}
				if seen[it.ID] {
					t.Fatalf("duplicate line for %s", it.ID)
				}
				seen[it.ID] = true
			}
		}
	})
}
