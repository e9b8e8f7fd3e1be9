package service

// rollback collects undo steps for side effects taken while serving one
// request. Steps run in reverse order when the request fails; commit
// disarms them once every step that could fail has succeeded.
//
//	rb := &rollback{}
//	defer rb.run()
//	... rb.add(undo) after each side effect ...
//	rb.commit()
type rollback struct {
	steps     []func()
	committed bool
}

func (r *rollback) add(step func()) { r.steps = append(r.steps, step) }

func (r *rollback) commit() { r.committed = true }

func (r *rollback) run() {
	if r.committed {
		return
	}
	for i := len(r.steps) - 1; i >= 0; i-- {
		r.steps[i]()
	}
}
