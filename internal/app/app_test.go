package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"origtext/internal/config"
	"origtext/internal/sequence"
)

func TestSequencerFallsBackWhenRedisIsDown(t *testing.T) {
	st := &Stack{Config: config.Config{UseRedisSequencer: true}, redisDown: true}
	require.IsType(t, &sequence.LocalSequencer{}, st.Sequencer())
}

func TestSequencerUsesRedisWhenReachable(t *testing.T) {
	st := &Stack{Config: config.Config{UseRedisSequencer: true}}
	require.IsType(t, &sequence.RedisSequencer{}, st.Sequencer())

	st.Config.UseRedisSequencer = false
	require.IsType(t, &sequence.LocalSequencer{}, st.Sequencer())
}
