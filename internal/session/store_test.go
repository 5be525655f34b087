package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"goattrib/domain/core"
	"goattrib/domain/dataset"
	"goattrib/domain/model"
	"goattrib/internal/preprocess"
	"goattrib/internal/regression"
	"goattrib/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	data := testkit.NewMarketingDataGenerator(testkit.TwoChannelConfig()).Generate()
	ds, _, err := preprocess.NewPreprocessor(0, nil).Load(data.Table(), data.Mapping())
	require.NoError(t, err)
	return ds
}

func fitResult(t *testing.T, ds *dataset.Dataset) (*regression.Design, *model.FitResult) {
	t.Helper()
	d, err := regression.BuildDesign(ds)
	require.NoError(t, err)
	m, _, err := regression.FitOLS(d)
	require.NoError(t, err)
	return d, &model.FitResult{FittedModel: m}
}

func TestStore_CreateGetDelete(t *testing.T) {
	s := NewStore()
	sess := s.Create()

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []core.SessionID{sess.ID}, s.IDs())

	require.NoError(t, s.Delete(sess.ID))
	_, err = s.Get(sess.ID)
	assert.True(t, errors.Is(err, core.ErrSessionNotFound))
	assert.True(t, errors.Is(s.Delete(sess.ID), core.ErrSessionNotFound))
}

func TestState_FitLifecycle(t *testing.T) {
	s := NewStore()
	sess := s.Create()
	ds := loadDataset(t)

	err := sess.Do(func(st *State) error {
		_, err := st.Simulator()
		assert.True(t, errors.Is(err, core.ErrModelNotFitted))

		st.ReplaceDataset(ds)
		d, fit := fitResult(t, ds)
		assert.Equal(t, uint64(1), st.InstallFit(d, fit))
		assert.Equal(t, uint64(1), fit.Generation)

		sim, err := st.Simulator()
		require.NoError(t, err)
		assert.Equal(t, uint64(1), sim.Generation())

		d2, fit2 := fitResult(t, ds)
		st.InstallFit(d2, fit2)
		sim2, err := st.Simulator()
		require.NoError(t, err)
		assert.Equal(t, uint64(2), sim2.Generation())
		assert.NotSame(t, sim, sim2)

		st.ReplaceDataset(ds)
		assert.Nil(t, st.Fit)
		_, err = st.Simulator()
		assert.True(t, errors.Is(err, core.ErrModelNotFitted))
		assert.Equal(t, uint64(2), st.Generation())
		return nil
	})
	require.NoError(t, err)
}

func TestState_StaleSimulatorRebuilt(t *testing.T) {
	ds := loadDataset(t)
	var st State
	st.ReplaceDataset(ds)
	d, fit := fitResult(t, ds)
	st.InstallFit(d, fit)

	// a fit installed without going through InstallFit's rebuild
	st.generation++
	sim, err := st.Simulator()
	require.NoError(t, err)
	assert.Equal(t, st.Generation(), sim.Generation())
}

func TestSession_DoSerialises(t *testing.T) {
	sess := NewStore().Create()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sess.Do(func(st *State) error {
				v := counter
				time.Sleep(time.Microsecond)
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestStore_EvictIdle(t *testing.T) {
	s := NewStore()
	old := s.Create()
	fresh := s.Create()

	now := time.Now()
	old.lastAccess.Store(now.Add(-2 * time.Hour).UnixNano())
	s.now = func() time.Time { return now }

	assert.Equal(t, 1, s.EvictIdle(time.Hour))
	_, err := s.Get(old.ID)
	assert.True(t, errors.Is(err, core.ErrSessionNotFound))
	_, err = s.Get(fresh.ID)
	assert.NoError(t, err)
}
