package programmer

import (
	"github.com/sirupsen/logrus"
)

// Strategy is one way of getting an image onto the board.
type Strategy struct {
	Name string
	Run  func() error
}

// Policy tries its strategies in order. The first success wins; if all
// fail, the errors of every attempt are returned as a *ChainError.
type Policy struct {
	Strategies []Strategy
	Logger     logrus.FieldLogger
}

// Run executes the policy.
func (p Policy) Run() error {
	log := p.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	chain := &ChainError{}
	for i, s := range p.Strategies {
		err := s.Run()
		if err == nil {
			if i > 0 {
				log.WithField("strategy", s.Name).Info("upload succeeded after fallback")
			}
			return nil
		}
		chain.Attempts = append(chain.Attempts, Attempt{Strategy: s.Name, Err: err})
		entry := log.WithError(err).WithField("strategy", s.Name)
		if i < len(p.Strategies)-1 {
			entry.WithField("next", p.Strategies[i+1].Name).Warn("upload attempt failed, falling back")
		} else {
			entry.Error("upload attempt failed")
		}
	}
	return chain
}
