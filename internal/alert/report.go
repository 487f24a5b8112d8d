package alert

import (
	"github.com/bwmarrin/snowflake"
	notificationdomain "github.com/smallbiznis/rentflow/internal/notification/domain"
	"github.com/smallbiznis/rentflow/pkg/relation"
)

// RuleStats counts the outcome of one rule across a pass.
type RuleStats struct {
	Created   int `json:"created"`
	Retired   int `json:"retired"`
	Unchanged int `json:"unchanged"`
}

// Failure is one subject whose evaluation failed. The rest of the pass
// continued without it.
type Failure struct {
	OrgID   snowflake.ID            `json:"org_id"`
	Type    notificationdomain.Type `json:"type,omitempty"`
	Subject string                  `json:"subject,omitempty"`
	Error   string                  `json:"error"`
}

type Report struct {
	Owners   int                                    `json:"owners"`
	Rules    map[notificationdomain.Type]*RuleStats `json:"rules"`
	Failures []Failure                              `json:"failures,omitempty"`
}

func newReport() Report {
	r := Report{Rules: make(map[notificationdomain.Type]*RuleStats, len(notificationdomain.Types))}
	for _, t := range notificationdomain.Types {
		r.Rules[t] = &RuleStats{}
	}
	return r
}

func (r *Report) stats(t notificationdomain.Type) *RuleStats {
	if r.Rules == nil {
		r.Rules = map[notificationdomain.Type]*RuleStats{}
	}
	s, ok := r.Rules[t]
	if !ok {
		s = &RuleStats{}
		r.Rules[t] = s
	}
	return s
}

func (r *Report) fail(orgID snowflake.ID, t notificationdomain.Type, subject relation.Ref, err error) {
	f := Failure{OrgID: orgID, Type: t, Error: err.Error()}
	if subject.Valid() {
		f.Subject = subject.String()
	}
	r.Failures = append(r.Failures, f)
}

// Created sums new notifications across rules.
func (r Report) Created() int {
	total := 0
	for _, s := range r.Rules {
		total += s.Created
	}
	return total
}

func (r Report) Retired() int {
	total := 0
	for _, s := range r.Rules {
		total += s.Retired
	}
	return total
}

func (r *Report) merge(other Report) {
	r.Owners += other.Owners
	for t, s := range other.Rules {
		dst := r.stats(t)
		dst.Created += s.Created
		dst.Retired += s.Retired
		dst.Unchanged += s.Unchanged
	}
	r.Failures = append(r.Failures, other.Failures...)
}
