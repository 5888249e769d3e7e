package session

import (
	"encoding/json"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
)

// Observer receives session updates for display. Calls for a turn come from the
// goroutine running Submit; OnBackground comes from the evaluation goroutine.
type Observer interface {
	OnStep(steps []domain.StepRecord)
	OnSessionSync(snapshot json.RawMessage)
	OnFinal(result *TurnResult)
	OnError(err error)
	OnBackground(msg domain.Message, err error)
}

// ObserverFuncs adapts optional functions to Observer.
type ObserverFuncs struct {
	Step        func(steps []domain.StepRecord)
	SessionSync func(snapshot json.RawMessage)
	Final       func(result *TurnResult)
	Error       func(err error)
	Background  func(msg domain.Message, err error)
}

func (o ObserverFuncs) OnStep(steps []domain.StepRecord) {
	if o.Step != nil {
		o.Step(steps)
	}
}

func (o ObserverFuncs) OnSessionSync(snapshot json.RawMessage) {
	if o.SessionSync != nil {
		o.SessionSync(snapshot)
	}
}

func (o ObserverFuncs) OnFinal(result *TurnResult) {
	if o.Final != nil {
		o.Final(result)
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

func (o ObserverFuncs) OnBackground(msg domain.Message, err error) {
	if o.Background != nil {
		o.Background(msg, err)
	}
}
