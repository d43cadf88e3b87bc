//go:build unit

package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLiveBySpaceQuery(t *testing.T) {
	t.Run("lock variant stays plannable", func(t *testing.T) {
		// Postgres rejects FOR UPDATE combined with DISTINCT, so the slot
		// match has to stay a semi-join.
		q := liveBySpaceQuery(true)
		assert.NotContains(t, q, "DISTINCT")
		assert.True(t, strings.HasSuffix(q, "FOR UPDATE"))
		assert.Contains(t, q, "IN (SELECT booking_id FROM booking_slots")
	})

	t.Run("read variant takes no locks", func(t *testing.T) {
		q := liveBySpaceQuery(false)
		assert.NotContains(t, q, "FOR UPDATE")
		assert.NotContains(t, q, "DISTINCT")
	})
}
