// Package policy implements the decision engine (C2): combining named
// allow/deny host-groups into a matcher pair and deciding allow/deny
// for a given hostname.
package policy

import (
	"fmt"

	"bwsandbox/internal/config"
	"bwsandbox/internal/hostmatch"
)

// Engine holds the expanded allow/deny matchers and default action for
// one resolved Policy. It is immutable after construction and safe for
// concurrent use by every filter-daemon connection goroutine.
type Engine struct {
	allow   *hostmatch.Matcher
	deny    *hostmatch.Matcher
	allowOnDefault bool
}

// GroupNotFoundError wraps config.NotFoundError for a group referenced
// by a policy's allow_groups/deny_groups.
type GroupNotFoundError struct {
	Name string
}

func (e *GroupNotFoundError) Error() string {
	return fmt.Sprintf("host group %q not found", e.Name)
}

// New builds an Engine from a resolved NetworkPolicy and the full set
// of named host groups it may reference. Returns GroupNotFoundError if
// any allow_groups/deny_groups name doesn't exist.
func New(groups map[string]config.HostGroup, net config.NetworkPolicy) (*Engine, error) {
	allowNames := net.ResolvedAllowGroups()

	allowHosts, allowDeny, err := config.ExpandHostGroups(groups, allowNames)
	if err != nil {
		return nil, wrapGroupErr(err)
	}
	denyHosts, denyDeny, err := config.ExpandHostGroups(groups, net.DenyGroups)
	if err != nil {
		return nil, wrapGroupErr(err)
	}

	// A group's own hosts_deny entries contribute to the deny matcher
	// regardless of whether the group was reached via allow_groups or
	// deny_groups — they express "never allow this even inside an
	// otherwise-broad allow group".
	allowMatcher, err := hostmatch.Compile(allowHosts)
	if err != nil {
		return nil, err
	}
	denyMatcher, err := hostmatch.Compile(append(append([]string{}, allowDeny...), append(denyHosts, denyDeny...)...))
	if err != nil {
		return nil, err
	}

	return &Engine{
		allow:          allowMatcher,
		deny:           denyMatcher,
		allowOnDefault: net.Default == config.DefaultAllow,
	}, nil
}

func wrapGroupErr(err error) error {
	if nf, ok := err.(*config.NotFoundError); ok && nf.Kind == "host-group" {
		return &GroupNotFoundError{Name: nf.Name}
	}
	return err
}

// Allow decides whether host may be reached. ip is accepted for
// forward compatibility with a possible future IP-range matcher and is
// currently ignored.
func (e *Engine) Allow(host string, ip *string) bool {
	_ = ip
	a, aok := e.allow.MatchesWithSpecificity(host)
	d, dok := e.deny.MatchesWithSpecificity(host)

	switch {
	case aok && dok:
		return a > d
	case aok:
		return true
	case dok:
		return false
	default:
		return e.allowOnDefault
	}
}
