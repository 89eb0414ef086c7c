package main

import (
	"fmt"
	"time"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/plan"
	"github.com/nimbuslab/flotilla/server/log"
	"github.com/robfig/cron/v3"
)

// Dispatcher owns the cron runtime behind the fleet schedule. Each group
// registers one entry per side of its schedule window; the cron runtime runs
// every firing on its own goroutine, so a slow provider never delays another
// group.
type Dispatcher struct {
	cron    *cron.Cron
	invoke  func(fleet.Trigger)
	entries map[string]groupEntries
}

type groupEntries struct {
	start cron.EntryID
	stop  cron.EntryID
}

func newDispatcher(p *plan.Plan, invoke func(fleet.Trigger)) (*Dispatcher, error) {
	d := &Dispatcher{
		cron:    cron.New(),
		invoke:  invoke,
		entries: map[string]groupEntries{},
	}

	for name, group := range p.Groups {
		var entries groupEntries
		var err error
		if group.Schedule.Start != "" {
			if entries.start, err = d.cron.AddFunc(group.Schedule.Start, d.firing(name, fleet.ActionStart)); err != nil {
				return nil, fmt.Errorf("failed to schedule start of group '%s': %w", name, err)
			}
		}
		if group.Schedule.Stop != "" {
			if entries.stop, err = d.cron.AddFunc(group.Schedule.Stop, d.firing(name, fleet.ActionStop)); err != nil {
				return nil, fmt.Errorf("failed to schedule stop of group '%s': %w", name, err)
			}
		}
		d.entries[name] = entries
		log.Debug("Scheduled group", "group", name, "start", group.Schedule.Start, "stop", group.Schedule.Stop)
	}

	return d, nil
}

// firing builds the cron callback for one side of a group's schedule window.
func (d *Dispatcher) firing(group string, action fleet.Action) func() {
	return func() {
		log.Info("Schedule fired", "group", group, "action", action)
		d.invoke(fleet.Trigger{Action: action, Group: group, Timestamp: time.Now().UTC()})
	}
}

func (d *Dispatcher) Start() {
	d.cron.Start()
	log.Info("Dispatcher started", "entries", len(d.cron.Entries()))
}

// Stop ends scheduling and blocks until in-flight firings return.
func (d *Dispatcher) Stop() {
	<-d.cron.Stop().Done()
}

// Upcoming reports the next start and stop firing of a group's schedule. A
// zero time means that side is unscheduled, or the dispatcher has not been
// started yet.
func (d *Dispatcher) Upcoming(group string) (start, stop time.Time) {
	entries, ok := d.entries[group]
	if !ok {
		return
	}
	if entries.start != 0 {
		start = d.cron.Entry(entries.start).Next
	}
	if entries.stop != 0 {
		stop = d.cron.Entry(entries.stop).Next
	}
	return
}
