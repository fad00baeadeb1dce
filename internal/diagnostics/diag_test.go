package diagnostics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"

	"github.com/coreman2200/arcaluminis-layout/internal/layout"
)

func TestFromFrameError(t *testing.T) {
	err := multierr.Combine(
		&layout.Error{Kind: layout.ErrValidation, Op: "push frame"},
		errors.New("spi write: broken pipe"),
	)
	got := FromFrameError(err)
	if assert.Len(t, got, 2) {
		assert.Equal(t, "FRAME.VALIDATION", got[0].Code)
		assert.Equal(t, Err, got[0].Severity)
		assert.Equal(t, "DEVICE.OUTPUT", got[1].Code)
	}
	assert.Empty(t, FromFrameError(nil))
}
