package limiter

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeModeDefaults(t *testing.T) {
	s := newSafeMode()
	st := s.State()
	require.False(t, st.Enabled)
	require.Equal(t, DefaultSafeModeRate, st.Rate)
	require.Equal(t, 7.0, s.Effective(7))
}

func TestSafeModeEnableValidatesRate(t *testing.T) {
	s := newSafeMode()
	err := s.Enable(0)
	require.ErrorIs(t, err, ErrInvalidRate)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "safe_mode.rate_limit", cfgErr.Field)
	require.False(t, s.Enabled(), "rejected update leaves state unchanged")
}

func TestSafeModeEffectiveIsMinimum(t *testing.T) {
	s := newSafeMode()
	require.NoError(t, s.Enable(2))

	require.Equal(t, 2.0, s.Effective(10))
	require.Equal(t, 1.5, s.Effective(1.5))

	s.Disable()
	require.Equal(t, 10.0, s.Effective(10))
	require.Equal(t, 2.0, s.State().Rate, "disable keeps the last override for reporting")
}

func TestSafeModeListeners(t *testing.T) {
	s := newSafeMode()

	var (
		mu      sync.Mutex
		changes [][2]SafeModeState
	)
	s.OnChange(func(prev, next SafeModeState) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, [2]SafeModeState{prev, next})
	})
	s.OnChange(nil)

	require.NoError(t, s.Enable(3))
	s.Disable()

	prev, err := s.Swap(SafeModeState{Enabled: true, Rate: 4})
	require.NoError(t, err)
	require.Equal(t, SafeModeState{Enabled: false, Rate: 3}, prev)

	require.Len(t, changes, 3)
	require.False(t, changes[0][0].Enabled)
	require.Equal(t, SafeModeState{Enabled: true, Rate: 3}, changes[0][1])
	require.Equal(t, SafeModeState{Enabled: false, Rate: 3}, changes[1][1])
}

func TestSafeModeConcurrentToggle(t *testing.T) {
	s := newSafeMode()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Enable(2)
			s.Disable()
		}()
		go func() {
			defer wg.Done()
			rate := s.Effective(10)
			assert.True(t, rate == 10 || rate == 2)
		}()
	}
	wg.Wait()
	require.False(t, s.Enabled())
}

func TestSafeModeUpdateRejectsInvalidResult(t *testing.T) {
	s := newSafeMode()
	require.NoError(t, s.Enable(3))

	prev, next, err := s.Update(func(st SafeModeState) SafeModeState {
		st.Rate = -1
		return st
	})
	require.ErrorIs(t, err, ErrInvalidRate)
	require.Equal(t, prev, next)
	require.Equal(t, SafeModeState{Enabled: true, Rate: 3}, s.State())
}

func TestSafeModeUpdateKeepsConcurrentFieldChanges(t *testing.T) {
	s := newSafeMode()
	const rounds = 200

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, _, err := s.Update(func(st SafeModeState) SafeModeState {
				st.Rate += 1
				return st
			})
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, _, err := s.Update(func(st SafeModeState) SafeModeState {
				st.Enabled = !st.Enabled
				return st
			})
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	st := s.State()
	require.Equal(t, DefaultSafeModeRate+rounds, st.Rate, "no rate increment is lost")
	require.False(t, st.Enabled, "an even number of toggles ends where it started")
}

func TestParseDomainAndPolicy(t *testing.T) {
	cases := map[string]Domain{
		"":                 DomainShared,
		"simple":           DomainShared,
		"shared":           DomainShared,
		"event-loop-bound": DomainScoped,
		"Scoped":           DomainScoped,
		"global":           DomainGlobal,
		"system":           DomainGlobal,
	}
	for in, want := range cases {
		got, err := ParseDomain(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseDomain("galactic")
	require.ErrorIs(t, err, ErrUnknownDomain)

	text, err := DomainScoped.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "scoped", string(text))

	var d Domain
	require.NoError(t, d.UnmarshalText([]byte("global")))
	require.Equal(t, DomainGlobal, d)

	p, err := ParseGlobalPolicy("most_recent")
	require.NoError(t, err)
	require.Equal(t, PolicyMostRecent, p)

	_, err = ParseGlobalPolicy("fastest")
	require.ErrorIs(t, err, ErrUnknownPolicy)
	require.Error(t, NewCoordinator().SetPolicy("fastest"))
}
