package paxos

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/senutpal/multipaxos/internal/storage"
)

// Acceptor votes on proposals. All acceptors behave identically; the id
// only tags 1B/2B replies so proposers can deduplicate votes. Every
// outbound message is a reply; acceptors never originate traffic.
type Acceptor struct {
	id    int
	mu    sync.Mutex
	store storage.Store
	log   *logrus.Entry
}

func NewAcceptor(id int, store storage.Store, logger *logrus.Logger) *Acceptor {
	return &Acceptor{
		id:    id,
		store: store,
		log:   logger.WithFields(logrus.Fields{"role": "acceptor", "id": id}),
	}
}

// Handle processes PHASE_1A and PHASE_2A; anything else is dropped.
func (a *Acceptor) Handle(m Message) []Envelope {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch d := m.Data.(type) {
	case Prepare:
		return a.onPrepare(m.Instance, d)
	case Accept:
		return a.onAccept(m.Instance, d)
	default:
		return nil
	}
}

// onPrepare promises not to vote in rounds below c_rnd. The reply is
// sent even when the prepare is stale: it carries the current rnd, so
// the losing proposer's round check discards it and the proposer can
// observe the larger round.
func (a *Acceptor) onPrepare(instance uint64, d Prepare) []Envelope {
	rec, _ := a.store.Load(instance)
	if d.CRnd > rec.Rnd {
		rec.Rnd = d.CRnd
		a.store.Save(instance, rec)
		a.log.WithFields(logrus.Fields{"instance": instance, "rnd": rec.Rnd}).Debug("promised")
	}
	return []Envelope{{
		Group: GroupProposers,
		Msg: Message{Instance: instance, Data: Promise{
			Rnd:      rec.Rnd,
			VRnd:     rec.VRnd,
			VVal:     rec.VVal,
			Acceptor: a.id,
		}},
	}}
}

// onAccept votes for c_val unless a higher round has been promised.
// Equality is allowed: the proposer that ran 1A uses the same c_rnd in
// 2A. Accepting also raises rnd so that v_rnd never exceeds it.
func (a *Acceptor) onAccept(instance uint64, d Accept) []Envelope {
	rec, _ := a.store.Load(instance)
	if d.CRnd >= rec.Rnd {
		rec.Rnd = d.CRnd
		rec.VRnd = d.CRnd
		rec.VVal = d.CVal
		a.store.Save(instance, rec)
		a.log.WithFields(logrus.Fields{"instance": instance, "v_rnd": rec.VRnd}).Debug("accepted")
	}
	return []Envelope{{
		Group: GroupProposers,
		Msg: Message{Instance: instance, Data: Accepted{
			VRnd:     rec.VRnd,
			VVal:     rec.VVal,
			Acceptor: a.id,
		}},
	}}
}
