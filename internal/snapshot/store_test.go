package snapshot

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kjstillabower/weather-ticker/internal/models"
)

// TestStore_EmptyUntilReplaced verifies the store is empty until a snapshot is stored
// and then reports its age.
func TestStore_EmptyUntilReplaced(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Load())
	_, ok := s.Age(time.Now())
	assert.False(t, ok)

	fetched := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	snap := &models.WeatherSnapshot{TemperatureC: 7, FetchedAt: fetched}
	s.Replace(snap)
	assert.Same(t, snap, s.Load())

	age, ok := s.Age(fetched.Add(90 * time.Second))
	assert.True(t, ok)
	assert.Equal(t, 90*time.Second, age)
}

// TestStore_NilReplaceKeepsPrevious verifies storing nil keeps the previous snapshot.
func TestStore_NilReplaceKeepsPrevious(t *testing.T) {
	s := NewStore()
	snap := &models.WeatherSnapshot{TemperatureC: 7}
	s.Replace(snap)
	s.Replace(nil)
	assert.Same(t, snap, s.Load())
}

// TestStore_ConcurrentReaders verifies concurrent readers and a writer do not race.
func TestStore_ConcurrentReaders(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if snap := s.Load(); snap != nil {
					_ = snap.TemperatureC
				}
			}
		}()
	}
	for i := 0; i < 100; i++ {
		s.Replace(&models.WeatherSnapshot{TemperatureC: i})
	}
	wg.Wait()
	assert.Equal(t, 99, s.Load().TemperatureC)
}
