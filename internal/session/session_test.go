package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tokenswap/internal/feed"
	"tokenswap/internal/pricebook"
	"tokenswap/internal/swap"
)

func testBook(t *testing.T) *pricebook.Book {
	t.Helper()
	eth, usdc := 2000.0, 1.0
	return pricebook.Normalize([]feed.Record{
		{Currency: "ETH", Price: &eth},
		{Currency: "USDC", Price: &usdc},
	})
}

func TestManager_CreateGetDelete(t *testing.T) {
	m := NewManager(time.Minute, 0)

	s := m.Create(testBook(t))
	require.NotEmpty(t, s.ID)
	require.Equal(t, 1, m.Len())

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	require.Same(t, s, got)

	_, ok = m.Get("nope")
	require.False(t, ok)

	m.Delete(s.ID)
	require.Equal(t, 0, m.Len())
}

func TestManager_SessionsAreIndependent(t *testing.T) {
	m := NewManager(time.Minute, 0)
	b := testBook(t)

	s1 := m.Create(b)
	s2 := m.Create(b)

	s1.Do(func(e *swap.Engine) {
		require.True(t, e.EditAmount(swap.SideFrom, "2"))
	})

	require.Equal(t, "4000.00000000", s1.State().To.Amount)
	require.Equal(t, "", s2.State().To.Amount)
}

func TestManager_IdleEviction(t *testing.T) {
	m := NewManager(50*time.Millisecond, 0)
	s := m.Create(testBook(t))

	s.mu.Lock()
	s.lastSeen = time.Now().Add(-time.Second)
	s.mu.Unlock()

	_, ok := m.Get(s.ID)
	require.False(t, ok, "idle session should be pruned")
}

func TestManager_CapEvictsStalest(t *testing.T) {
	m := NewManager(0, 2)
	b := testBook(t)

	s1 := m.Create(b)
	s2 := m.Create(b)
	s1.mu.Lock()
	s1.lastSeen = time.Now().Add(-time.Hour)
	s1.mu.Unlock()

	s3 := m.Create(b)
	require.Equal(t, 2, m.Len())

	_, ok := m.Get(s1.ID)
	require.False(t, ok, "stalest session should be evicted at the cap")
	_, ok = m.Get(s2.ID)
	require.True(t, ok)
	_, ok = m.Get(s3.ID)
	require.True(t, ok)
}

func TestManager_SetBookFanOut(t *testing.T) {
	m := NewManager(time.Minute, 0)
	s := m.Create(pricebook.Empty())
	require.Equal(t, "", s.State().From.Token)

	m.SetBook(testBook(t))
	st := s.State()
	require.Equal(t, "ETH", st.From.Token)
	require.Equal(t, "USDC", st.To.Token)
}
