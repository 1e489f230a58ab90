// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package scheduler decides which agents are due and the order they run in.
package scheduler

import (
	"cmp"
	"slices"
	"time"

	"github.com/cardinalhq/dataimport/ledgerdb"
)

// lookback bounds the search for a schedule's most recent trigger point.
const lookback = 7

// MostRecentTrigger returns the latest time at or before now that matches the
// schedule's weekday, hour and minute in loc.
func MostRecentTrigger(s ledgerdb.AgentSchedule, now time.Time, loc *time.Location) (time.Time, bool) {
	local := now.In(loc)
	for i := 0; i <= lookback; i++ {
		day := local.AddDate(0, 0, -i)
		if int16(day.Weekday()) != s.Day {
			continue
		}
		t := time.Date(day.Year(), day.Month(), day.Day(), int(s.Hour), int(s.Minute), 0, 0, loc)
		if !t.After(now) {
			return t, true
		}
	}
	return time.Time{}, false
}

// ShouldExecute reports whether the agent is due at now. An agent is due when
// it is enabled and not archived, and some schedule entry has a trigger point
// after the agent last ran. Missed trigger points collapse into one run.
func ShouldExecute(agent ledgerdb.Agent, schedules []ledgerdb.AgentSchedule, now time.Time, loc *time.Location) bool {
	if !agent.Enabled || agent.Archived || len(schedules) == 0 {
		return false
	}
	for _, s := range schedules {
		trigger, ok := MostRecentTrigger(s, now, loc)
		if !ok {
			continue
		}
		if agent.LastExecuted == nil || trigger.After(*agent.LastExecuted) {
			return true
		}
	}
	return false
}

// Order returns the agents sorted by RunOrder with unset values last. Ties
// keep ascending id order.
func Order(agents []ledgerdb.Agent) []ledgerdb.Agent {
	out := slices.Clone(agents)
	slices.SortStableFunc(out, func(a, b ledgerdb.Agent) int {
		switch {
		case a.RunOrder != nil && b.RunOrder != nil:
			if c := cmp.Compare(*a.RunOrder, *b.RunOrder); c != 0 {
				return c
			}
		case a.RunOrder != nil:
			return -1
		case b.RunOrder != nil:
			return 1
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Due filters agents down to those due at now, in run order.
func Due(agents []ledgerdb.Agent, schedules []ledgerdb.AgentSchedule, now time.Time, loc *time.Location) []ledgerdb.Agent {
	byAgent := make(map[int64][]ledgerdb.AgentSchedule)
	for _, s := range schedules {
		byAgent[s.AgentID] = append(byAgent[s.AgentID], s)
	}
	due := make([]ledgerdb.Agent, 0, len(agents))
	for _, a := range agents {
		if ShouldExecute(a, byAgent[a.ID], now, loc) {
			due = append(due, a)
		}
	}
	return Order(due)
}
