// Package services holds the built-in service kinds and builds configured
// registrations into running services.
package services

import (
	"fmt"
	"sort"

	"github.com/mattjoyce/svcengine/internal/events"
	"github.com/mattjoyce/svcengine/internal/metrics"
	"github.com/mattjoyce/svcengine/internal/service"
	"github.com/mattjoyce/svcengine/internal/worker"
)

// Deps are the shared collaborators handed to every constructor.
type Deps struct {
	Events *events.Hub
}

// Constructor builds one service of a kind from its validated base.
type Constructor func(base *service.Base, deps Deps) (service.Service, error)

var constructors = map[string]Constructor{
	KindRoot:    NewRoot,
	KindListDir: NewListDir,
	KindRandom:  NewRandom,
	KindExec:    NewExec,
}

// Kinds returns the registered kind names, sorted.
func Kinds() []string {
	out := make([]string, 0, len(constructors))
	for k := range constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build turns registrations into services, in order. Disabled registrations
// are built too so that they can be listed; the controller skips them.
func Build(regs []service.Registration, deps Deps) ([]service.Service, error) {
	out := make([]service.Service, 0, len(regs))
	for _, reg := range regs {
		svc, err := buildOne(reg, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, nil
}

func buildOne(reg service.Registration, deps Deps) (service.Service, error) {
	newSvc, ok := constructors[reg.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: service %q: unknown kind %q", service.ErrInvalidRegistration, reg.Name, reg.Kind)
	}

	base, err := service.NewBase(reg)
	if err != nil {
		return nil, err
	}

	svc, err := newSvc(base, deps)
	if err != nil {
		return nil, fmt.Errorf("build service %q: %w", reg.Name, err)
	}
	return svc, nil
}

// backedOptions wires worker transitions into the event hub and metrics.
func (d Deps) backedOptions() []service.BackedOption {
	return []service.BackedOption{
		service.WithStateObserver(func(name string, from, to worker.State) {
			metrics.SetWorkerState(name, int(to))
			d.Events.WorkerState(name, from.String(), to.String())
		}),
	}
}
