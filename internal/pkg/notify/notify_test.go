package notify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorderDrain(t *testing.T) {
	r := NewRecorder()
	r.Notify(Success("Added to cart", "Resistor pack"))
	r.Notify(Failure("Error", "boom"))

	got := r.Drain()
	assert.Len(t, got, 2)
	assert.Equal(t, LevelSuccess, got[0].Level)
	assert.Equal(t, LevelDestructive, got[1].Level)
	assert.Empty(t, r.Drain())
}

func TestRecorderCapacity(t *testing.T) {
	r := NewRecorder()
	for i := 0; i < defaultCapacity+5; i++ {
		r.Notify(Info(fmt.Sprintf("n%d", i), ""))
	}

	got := r.Drain()
	assert.Len(t, got, defaultCapacity)
	assert.Equal(t, "n5", got[0].Title)
}
