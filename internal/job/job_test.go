package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"docenhance/internal/classify"
)

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateExtracting.Terminal())
	assert.False(t, StateCorrecting.Terminal())
	assert.False(t, StateAnalyzing.Terminal())
}

func TestConfigTimeoutFor(t *testing.T) {
	cfg := DefaultConfig()

	// Base deadline for small inputs, plus 5s per started megabyte, capped
	// at the ceiling.
	assert.Equal(t, 30*time.Second, cfg.timeoutFor(0))
	assert.Equal(t, 35*time.Second, cfg.timeoutFor(1))
	assert.Equal(t, 35*time.Second, cfg.timeoutFor(1<<20))
	assert.Equal(t, 40*time.Second, cfg.timeoutFor(1<<20+1))
	assert.Equal(t, 60*time.Second, cfg.timeoutFor(50<<20))
}

func TestConfigNormalize(t *testing.T) {
	cfg := Config{}.normalize()
	assert.Equal(t, DefaultConfig(), cfg)

	custom := Config{MaxAttempts: 5}.normalize()
	assert.Equal(t, 5, custom.MaxAttempts)
	assert.Equal(t, DefaultConfig().RetryBudget, custom.RetryBudget)
}

func TestRecordClone(t *testing.T) {
	rec := &Record{
		ID:    "j",
		State: StateCompleted,
		Changes: []classify.ChangeRecord{
			{Original: "Teh", Corrected: "The", Category: classify.CategorySpelling},
		},
		Summary: &classify.Summary{
			Counts: map[classify.Category]int{classify.CategorySpelling: 1},
			Total:  1,
			Text:   "Fixed 1 spelling error(s).",
		},
	}

	c := rec.Clone()
	c.Changes[0].Original = "mutated"
	c.Summary.Text = "mutated"
	c.Summary.Counts[classify.CategorySpelling] = 99
	c.Summary.Counts[classify.CategoryOther] = 1

	assert.Equal(t, "Teh", rec.Changes[0].Original)
	assert.Equal(t, "Fixed 1 spelling error(s).", rec.Summary.Text)
	assert.Equal(t, map[classify.Category]int{classify.CategorySpelling: 1}, rec.Summary.Counts)

	var nilRec *Record
	assert.Nil(t, nilRec.Clone())
}
