package train

// Hooks are called by the training loop between the operations it owns.
// A hook that returns an error stops training with that error.
//
// Embed NopHooks to implement only the events you need.
type Hooks interface {
	OnStartTraining() error
	OnEndTraining() error
	OnStartEpoch(epoch int) error
	OnEndEpoch(epoch int) error
	OnStartBatch(epoch, batch int) error
	OnEndBatch(epoch, batch int) error
}

// NopHooks implements Hooks with no-ops.
type NopHooks struct{}

func (NopHooks) OnStartTraining() error      { return nil }
func (NopHooks) OnEndTraining() error        { return nil }
func (NopHooks) OnStartEpoch(int) error      { return nil }
func (NopHooks) OnEndEpoch(int) error        { return nil }
func (NopHooks) OnStartBatch(int, int) error { return nil }
func (NopHooks) OnEndBatch(int, int) error   { return nil }

// hookList calls every hook in order and stops at the first error.
type hookList []Hooks

func (h hookList) each(f func(Hooks) error) error {
	for _, hook := range h {
		if err := f(hook); err != nil {
			return err
		}
	}
	return nil
}
