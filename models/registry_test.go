package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfielding/kripke-mdp/check"
	"github.com/rfielding/kripke-mdp/models/retry"
	"github.com/rfielding/kripke-mdp/sampler"
)

func TestRegistry(t *testing.T) {
	r := Default()
	var names []string
	for _, s := range r.All() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"mm1", "purple", "retry"}, names)

	s, err := r.Lookup("retry")
	require.NoError(t, err)
	assert.Equal(t, check.Max, s.Objective())

	_, err = r.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownModel)

	_, err = NewRegistry(retry.Spec{}, retry.Spec{})
	assert.Error(t, err)
}

func TestEveryModelSolvesWithDefaults(t *testing.T) {
	cfg := sampler.DefaultConfig()
	cfg.Precision = 1e-4
	for _, spec := range Default().All() {
		t.Run(spec.Name(), func(t *testing.T) {
			assert.NotEmpty(t, spec.Description())
			assert.NotEmpty(t, spec.Target())

			p, err := check.Build(spec, nil)
			require.NoError(t, err)
			res, _, err := check.Run(context.Background(), p, spec.Objective(), cfg)
			require.NoError(t, err)
			assert.True(t, res.Solved)
			b := res.States[0].Bounds
			assert.LessOrEqual(t, b.Lower, b.Upper)
			assert.Less(t, b.Width(), 1e-4)
		})
	}
}
