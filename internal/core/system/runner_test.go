package system

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	phase Phase
	name  string
	log   *[]string
	err   error
}

func (r *recorder) Phase() Phase { return r.phase }

func (r *recorder) Update(int) error {
	*r.log = append(*r.log, r.name)
	return r.err
}

func TestRunnerPhaseOrder(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(&recorder{PhaseCleanup, "cleanup", &log, nil})
	r.Register(&recorder{PhaseEmit, "emit-a", &log, nil})
	r.Register(&recorder{PhasePreUpdate, "dispatch", &log, nil})
	r.Register(&recorder{PhaseEmit, "emit-b", &log, nil})

	require.NoError(t, r.Tick(0))
	assert.Equal(t, []string{"dispatch", "emit-a", "emit-b", "cleanup"}, log)
}

func TestRunnerKeepsGoingOnError(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	r := NewRunner()
	r.Register(&recorder{PhaseEmit, "emit", &log, boom})
	r.Register(&recorder{PhaseCleanup, "cleanup", &log, nil})

	err := r.Tick(3)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "emit: boom")
	assert.Equal(t, []string{"emit", "cleanup"}, log)
}

func TestTickPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(&recorder{PhaseEmit, "emit", &log, nil})
	r.Register(&recorder{PhaseStep, "step", &log, nil})

	require.NoError(t, r.TickPhase(PhaseStep, 0))
	assert.Equal(t, []string{"step"}, log)
	assert.Equal(t, 2, r.Len())
}
