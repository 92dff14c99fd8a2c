package alerts

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupWindowEvictsOldest(t *testing.T) {
	d := NewDedupWindow(3)
	for _, id := range []string{"a", "b", "c"} {
		d.Add(id)
	}
	assert.Equal(t, 3, d.Len())

	d.Add("d")
	assert.False(t, d.Contains("a"))
	assert.True(t, d.Contains("b"))
	assert.True(t, d.Contains("d"))
	assert.Equal(t, 3, d.Len())
}

func TestDedupWindowReAddIsNoop(t *testing.T) {
	d := NewDedupWindow(2)
	d.Add("a")
	d.Add("a")
	d.Add("b")
	assert.True(t, d.Contains("a"))
	assert.Equal(t, 2, d.Len())
}

func TestDedupWindowDefaultCapacity(t *testing.T) {
	d := NewDedupWindow(0)
	assert.Equal(t, 2000, d.Cap())
	for i := 0; i < 2001; i++ {
		d.Add(fmt.Sprintf("id-%d", i))
	}
	assert.False(t, d.Contains("id-0"))
	assert.True(t, d.Contains("id-1"))
	assert.True(t, d.Contains("id-2000"))
	assert.Equal(t, 2000, d.Len())
}
