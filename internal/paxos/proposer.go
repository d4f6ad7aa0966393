package paxos

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// stage tracks how far an instance's current round has progressed, so
// late quorum replies can never re-fire an emission.
type stage int

const (
	stageIdle stage = iota
	stagePreparing
	stageAccepting
	stageDecided
)

type proposerState struct {
	round uint64 // k in c_rnd = k*numProposers + id; 0 until first request
	cRnd  uint64
	cVal  string
	v     string // the client-requested value
	stage stage

	// 1B bookkeeping for the current round: one vote per acceptor,
	// and the highest previously accepted (v_rnd, v_val) seen.
	promises map[int]struct{}
	bestVRnd uint64
	bestVVal string

	// 2B bookkeeping for the current round.
	accepts map[int]struct{}
}

// Proposer drives rounds for the instances it leads. Only the leader
// (id 0) reacts to messages; followers stay silent. Leadership is fixed
// by id; there is no mechanism that promotes a follower.
type Proposer struct {
	id           int
	numProposers int
	majority     int
	mu           sync.Mutex
	states       map[uint64]*proposerState
	log          *logrus.Entry
}

// NewProposer configures a proposer. numAcceptors sets the quorum size;
// numProposers sets the stride that keeps rounds disjoint across
// proposers.
func NewProposer(id, numProposers, numAcceptors int, logger *logrus.Logger) *Proposer {
	return &Proposer{
		id:           id,
		numProposers: numProposers,
		majority:     numAcceptors/2 + 1,
		states:       map[uint64]*proposerState{},
		log:          logger.WithFields(logrus.Fields{"role": "proposer", "id": id}),
	}
}

// Leader reports whether this proposer drives rounds.
func (p *Proposer) Leader() bool { return p.id == 0 }

// Handle processes REQUEST, PHASE_1B and PHASE_2B. Followers and
// unexpected phases drop silently.
func (p *Proposer) Handle(m Message) []Envelope {
	if !p.Leader() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	switch d := m.Data.(type) {
	case Request:
		return p.onRequest(m.Instance, d)
	case Promise:
		return p.onPromise(m.Instance, d)
	case Accepted:
		return p.onAccepted(m.Instance, d)
	default:
		return nil
	}
}

// Retry abandons the current round for an undecided instance and starts
// a fresh one with a strictly larger c_rnd. It is a no-op for unknown
// or already decided instances. The core carries no timers; callers
// decide when a round has starved.
func (p *Proposer) Retry(instance uint64) []Envelope {
	if !p.Leader() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.states[instance]
	if !ok || st.stage == stageDecided {
		return nil
	}
	return p.startRound(instance, st)
}

func (p *Proposer) state(instance uint64) *proposerState {
	st, ok := p.states[instance]
	if !ok {
		st = &proposerState{}
		p.states[instance] = st
	}
	return st
}

func (p *Proposer) onRequest(instance uint64, d Request) []Envelope {
	st := p.state(instance)
	if st.stage == stageDecided {
		return nil
	}
	st.v = d.V
	return p.startRound(instance, st)
}

// startRound allocates the next round for this instance and emits
// PHASE_1A. Rounds are k*numProposers + id for strictly increasing
// k >= 1: monotonic per instance, disjoint across proposers, never 0.
func (p *Proposer) startRound(instance uint64, st *proposerState) []Envelope {
	st.round++
	st.cRnd = st.round*uint64(p.numProposers) + uint64(p.id)
	st.stage = stagePreparing
	st.promises = map[int]struct{}{}
	st.accepts = map[int]struct{}{}
	st.bestVRnd = 0
	st.bestVVal = ""

	p.log.WithFields(logrus.Fields{"instance": instance, "c_rnd": st.cRnd}).Info("starting round")
	return []Envelope{{
		Group: GroupAcceptors,
		Msg:   Message{Instance: instance, Data: Prepare{CRnd: st.cRnd}},
	}}
}

func (p *Proposer) onPromise(instance uint64, d Promise) []Envelope {
	st, ok := p.states[instance]
	if !ok || st.stage != stagePreparing || d.Rnd != st.cRnd {
		return nil
	}

	st.promises[d.Acceptor] = struct{}{}
	if d.VRnd > st.bestVRnd {
		st.bestVRnd = d.VRnd
		st.bestVVal = d.VVal
	}
	if len(st.promises) < p.majority {
		return nil
	}

	// Quorum of promises: propose the carried-over value if any
	// acceptor already voted, otherwise the client's value.
	if st.bestVRnd == 0 {
		st.cVal = st.v
	} else {
		st.cVal = st.bestVVal
	}
	st.stage = stageAccepting
	st.promises = map[int]struct{}{}

	p.log.WithFields(logrus.Fields{"instance": instance, "c_rnd": st.cRnd, "c_val": st.cVal}).Info("promise quorum")
	return []Envelope{{
		Group: GroupAcceptors,
		Msg:   Message{Instance: instance, Data: Accept{CRnd: st.cRnd, CVal: st.cVal}},
	}}
}

func (p *Proposer) onAccepted(instance uint64, d Accepted) []Envelope {
	st, ok := p.states[instance]
	if !ok || st.stage != stageAccepting || d.VRnd != st.cRnd {
		return nil
	}

	st.accepts[d.Acceptor] = struct{}{}
	if len(st.accepts) < p.majority {
		return nil
	}

	st.stage = stageDecided
	st.accepts = map[int]struct{}{}

	p.log.WithFields(logrus.Fields{"instance": instance, "v_val": st.cVal}).Info("decided")
	return []Envelope{{
		Group: GroupLearners,
		Msg:   Message{Instance: instance, Data: Decision{VVal: st.cVal}},
	}}
}
