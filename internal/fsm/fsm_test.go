// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsm

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type state string
type ev string

var table = []Transition[state, ev]{
	{From: "off", Event: "toggle", To: "on"},
	{From: "on", Event: "toggle", To: "off"},
	{From: "on", Event: "break", To: "broken"},
}

func TestMachineFiresKnownTransitions(t *testing.T) {
	m, err := New[state, ev]("off", table)
	require.NoError(t, err)

	to, err := m.Fire("toggle")
	require.NoError(t, err)
	require.Equal(t, state("on"), to)
	require.Equal(t, state("on"), m.State())
	require.True(t, m.Can("break"))
}

func TestMachineRejectsUnknownTransition(t *testing.T) {
	m := MustNew[state, ev]("off", table)

	cur, err := m.Fire("break")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidTransition))
	require.Equal(t, state("off"), cur)

	var te *TransitionError[state, ev]
	require.ErrorAs(t, err, &te)
	require.Equal(t, ev("break"), te.Event)
}

func TestNewRejectsDuplicateEdges(t *testing.T) {
	_, err := New[state, ev]("off", append(table, Transition[state, ev]{From: "off", Event: "toggle", To: "broken"}))
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate transition")
}

func TestMachineConcurrentFireAppliesExactlyOnce(t *testing.T) {
	m := MustNew[state, ev]("on", table)
	var hooks atomic.Int32
	m.OnTransition(func(from, to state, _ ev) {
		assert.Equal(t, state("on"), from)
		assert.Equal(t, state("broken"), to)
		hooks.Add(1)
	})

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Fire("break"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
	require.Equal(t, int32(1), hooks.Load())
}
