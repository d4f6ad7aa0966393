package paxos

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Learner records decided values. A decision, once recorded, never
// changes; a conflicting DECISION for the same instance is dropped,
// logged, and counted, since it can only mean the ensemble violated
// safety.
type Learner struct {
	mu        sync.Mutex
	decided   map[uint64]string
	delivered uint64 // instances below this are part of the emitted prefix
	conflicts int
	log       *logrus.Entry
}

func NewLearner(id int, logger *logrus.Logger) *Learner {
	return &Learner{
		decided: map[uint64]string{},
		log:     logger.WithFields(logrus.Fields{"role": "learner", "id": id}),
	}
}

// Handle processes DECISION; anything else is dropped. Learners send
// nothing.
func (l *Learner) Handle(m Message) []Envelope {
	d, ok := m.Data.(Decision)
	if !ok {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if prev, ok := l.decided[m.Instance]; ok {
		if prev != d.VVal {
			l.conflicts++
			l.log.WithFields(logrus.Fields{
				"instance": m.Instance,
				"decided":  prev,
				"got":      d.VVal,
			}).Error("conflicting decision")
		}
		return nil
	}

	l.decided[m.Instance] = d.VVal
	for {
		v, ok := l.decided[l.delivered]
		if !ok {
			break
		}
		l.log.WithFields(logrus.Fields{"instance": l.delivered, "v": v}).Info("delivered")
		l.delivered++
	}
	return nil
}

// Chosen returns the decided value for an instance, if any.
func (l *Learner) Chosen(instance uint64) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.decided[instance]
	return v, ok
}

// Sequence returns the contiguous prefix of decided values starting at
// instance 0.
func (l *Learner) Sequence() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	seq := make([]string, 0, l.delivered)
	for i := uint64(0); i < l.delivered; i++ {
		seq = append(seq, l.decided[i])
	}
	return seq
}

// Conflicts reports how many conflicting decisions this learner has
// seen. Nonzero means safety was violated somewhere.
func (l *Learner) Conflicts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conflicts
}
