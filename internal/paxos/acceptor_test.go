package paxos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/senutpal/multipaxos/internal/storage"
)

func newAcceptor(id int) *Acceptor {
	return NewAcceptor(id, storage.NewMemoryStore(), newTestLogger())
}

func promiseOf(t *testing.T, envs []Envelope) Promise {
	t.Helper()
	require.Len(t, envs, 1)
	require.Equal(t, GroupProposers, envs[0].Group)
	d, ok := envs[0].Msg.Data.(Promise)
	require.True(t, ok, "want PHASE_1B, got %s", envs[0].Msg.Data.Phase())
	return d
}

func acceptedOf(t *testing.T, envs []Envelope) Accepted {
	t.Helper()
	require.Len(t, envs, 1)
	require.Equal(t, GroupProposers, envs[0].Group)
	d, ok := envs[0].Msg.Data.(Accepted)
	require.True(t, ok, "want PHASE_2B, got %s", envs[0].Msg.Data.Phase())
	return d
}

func TestAcceptorPromise(t *testing.T) {
	a := newAcceptor(0)

	d := promiseOf(t, a.Handle(Message{Instance: 0, Data: Prepare{CRnd: 2}}))
	assert.Equal(t, Promise{Rnd: 2, VRnd: 0, VVal: "", Acceptor: 0}, d)

	// A lower prepare still gets a reply, carrying the higher rnd.
	d = promiseOf(t, a.Handle(Message{Instance: 0, Data: Prepare{CRnd: 1}}))
	assert.Equal(t, uint64(2), d.Rnd)
}

func TestAcceptorAccept(t *testing.T) {
	a := newAcceptor(1)
	a.Handle(Message{Instance: 0, Data: Prepare{CRnd: 2}})

	// Equal round is accepted: same proposer, 1A then 2A.
	d := acceptedOf(t, a.Handle(Message{Instance: 0, Data: Accept{CRnd: 2, CVal: "X"}}))
	assert.Equal(t, Accepted{VRnd: 2, VVal: "X", Acceptor: 1}, d)

	// A stale accept changes nothing; the reply reports the real vote.
	d = acceptedOf(t, a.Handle(Message{Instance: 0, Data: Accept{CRnd: 1, CVal: "Y"}}))
	assert.Equal(t, Accepted{VRnd: 2, VVal: "X", Acceptor: 1}, d)
}

func TestAcceptorAcceptRaisesRnd(t *testing.T) {
	a := newAcceptor(0)

	// 2A without a prior 1A (another proposer's round) is accepted and
	// raises rnd, so a later 1A with a smaller round cannot promise.
	acceptedOf(t, a.Handle(Message{Instance: 0, Data: Accept{CRnd: 5, CVal: "X"}}))
	d := promiseOf(t, a.Handle(Message{Instance: 0, Data: Prepare{CRnd: 3}}))
	assert.Equal(t, Promise{Rnd: 5, VRnd: 5, VVal: "X", Acceptor: 0}, d)
}

func TestAcceptorIdempotence(t *testing.T) {
	a := newAcceptor(0)

	first := promiseOf(t, a.Handle(Message{Instance: 0, Data: Prepare{CRnd: 4}}))
	second := promiseOf(t, a.Handle(Message{Instance: 0, Data: Prepare{CRnd: 4}}))
	assert.Equal(t, first, second)

	acc1 := acceptedOf(t, a.Handle(Message{Instance: 0, Data: Accept{CRnd: 4, CVal: "X"}}))
	acc2 := acceptedOf(t, a.Handle(Message{Instance: 0, Data: Accept{CRnd: 4, CVal: "X"}}))
	assert.Equal(t, acc1, acc2)
}

func TestAcceptorRoundMonotonicity(t *testing.T) {
	a := newAcceptor(0)
	var lastRnd, lastVRnd uint64

	steps := []Message{
		{Instance: 0, Data: Prepare{CRnd: 2}},
		{Instance: 0, Data: Accept{CRnd: 2, CVal: "X"}},
		{Instance: 0, Data: Prepare{CRnd: 1}},
		{Instance: 0, Data: Accept{CRnd: 1, CVal: "Y"}},
		{Instance: 0, Data: Prepare{CRnd: 7}},
		{Instance: 0, Data: Accept{CRnd: 7, CVal: "Z"}},
	}
	for _, m := range steps {
		envs := a.Handle(m)
		require.Len(t, envs, 1)
		var rnd, vRnd uint64
		switch d := envs[0].Msg.Data.(type) {
		case Promise:
			rnd, vRnd = d.Rnd, d.VRnd
		case Accepted:
			rnd, vRnd = d.VRnd, d.VRnd
		}
		assert.GreaterOrEqual(t, rnd, lastRnd)
		assert.GreaterOrEqual(t, vRnd, lastVRnd)
		assert.LessOrEqual(t, vRnd, rnd)
		lastRnd, lastVRnd = rnd, vRnd
	}
}

func TestAcceptorIgnoresOtherPhases(t *testing.T) {
	a := newAcceptor(0)
	for _, data := range []PhaseData{
		Request{V: "X"},
		Promise{Rnd: 1},
		Accepted{VRnd: 1},
		Decision{VVal: "X"},
	} {
		assert.Nil(t, a.Handle(Message{Instance: 0, Data: data}))
	}
}

func TestAcceptorInstancesAreIndependent(t *testing.T) {
	a := newAcceptor(0)
	a.Handle(Message{Instance: 0, Data: Prepare{CRnd: 9}})

	d := promiseOf(t, a.Handle(Message{Instance: 1, Data: Prepare{CRnd: 2}}))
	assert.Equal(t, uint64(2), d.Rnd)
}
