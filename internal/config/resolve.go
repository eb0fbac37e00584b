package config

import "fmt"

// CycleError reports a reference cycle discovered while resolving
// HostGroup.Groups or FilesystemSpec.Extends edges.
type CycleError struct {
	Kind string // "host-group" or "filesystem-spec"
	Path []string
}

func (e *CycleError) Error() string {
	path := e.Path[0]
	for _, n := range e.Path[1:] {
		path += " -> " + n
	}
	return fmt.Sprintf("cycle detected in %s references: %s", e.Kind, path)
}

// NotFoundError reports a referenced name that doesn't exist.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// ValidateHostGroupGraph checks that every HostGroup.Groups reference
// exists and that the reference graph is acyclic.
func ValidateHostGroupGraph(groups map[string]HostGroup) error {
	visiting := map[string]bool{}
	done := map[string]bool{}
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		if done[name] {
			return nil
		}
		if visiting[name] {
			return &CycleError{Kind: "host-group", Path: append(append([]string{}, stack...), name)}
		}
		g, ok := groups[name]
		if !ok {
			return &NotFoundError{Kind: "host-group", Name: name}
		}
		visiting[name] = true
		stack = append(stack, name)
		for _, ref := range g.Groups {
			if err := visit(ref); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		visiting[name] = false
		done[name] = true
		return nil
	}

	for name := range groups {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// ExpandHostGroup flattens a named HostGroup and everything it
// transitively references via Groups into a single (allow, deny) pair
// of wildcard pattern lists. The caller's config must already have
// passed ValidateHostGroupGraph; ExpandHostGroup does not itself detect
// cycles (it relies on the graph being acyclic) but will not infinite-
// loop on a validated graph since each name is visited at most once.
func ExpandHostGroup(groups map[string]HostGroup, name string) (allow, deny []string, err error) {
	visited := map[string]bool{}
	var walk func(n string) error
	walk = func(n string) error {
		if visited[n] {
			return nil
		}
		visited[n] = true
		g, ok := groups[n]
		if !ok {
			return &NotFoundError{Kind: "host-group", Name: n}
		}
		allow = append(allow, g.Hosts...)
		deny = append(deny, g.HostsDeny...)
		for _, ref := range g.Groups {
			if err := walk(ref); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(name); err != nil {
		return nil, nil, err
	}
	return allow, deny, nil
}

// ExpandHostGroups is ExpandHostGroup over a list of names, returning
// the union of every name's allow/deny patterns.
func ExpandHostGroups(groups map[string]HostGroup, names []string) (allow, deny []string, err error) {
	for _, n := range names {
		a, d, err := ExpandHostGroup(groups, n)
		if err != nil {
			return nil, nil, err
		}
		allow = append(allow, a...)
		deny = append(deny, d...)
	}
	return allow, deny, nil
}

// ResolveFilesystemSpec flattens a named FilesystemSpec and its
// Extends chain into one spec with every list field concatenated
// parent-then-self, and Description taken from the most specific
// (deepest) non-empty override.
func ResolveFilesystemSpec(specs map[string]FilesystemSpec, name string) (FilesystemSpec, error) {
	visiting := map[string]bool{}
	var stack []string

	var resolve func(n string) (FilesystemSpec, error)
	resolve = func(n string) (FilesystemSpec, error) {
		if visiting[n] {
			return FilesystemSpec{}, &CycleError{Kind: "filesystem-spec", Path: append(append([]string{}, stack...), n)}
		}
		spec, ok := specs[n]
		if !ok {
			return FilesystemSpec{}, &NotFoundError{Kind: "filesystem-spec", Name: n}
		}

		visiting[n] = true
		stack = append(stack, n)

		out := FilesystemSpec{}
		for _, parent := range spec.Extends {
			resolvedParent, err := resolve(parent)
			if err != nil {
				return FilesystemSpec{}, err
			}
			out = concatFilesystemSpec(out, resolvedParent)
		}
		out = concatFilesystemSpec(out, spec)
		if spec.Description != "" {
			out.Description = spec.Description
		}

		stack = stack[:len(stack)-1]
		visiting[n] = false
		return out, nil
	}

	return resolve(name)
}

func concatFilesystemSpec(a, b FilesystemSpec) FilesystemSpec {
	desc := a.Description
	if b.Description != "" {
		desc = b.Description
	}
	return FilesystemSpec{
		Description:       desc,
		ROHomeDirs:        append(append([]string{}, a.ROHomeDirs...), b.ROHomeDirs...),
		RWHomeDirs:        append(append([]string{}, a.RWHomeDirs...), b.RWHomeDirs...),
		ROHomeFiles:       append(append([]string{}, a.ROHomeFiles...), b.ROHomeFiles...),
		RWHomeFiles:       append(append([]string{}, a.RWHomeFiles...), b.RWHomeFiles...),
		EssentialEtcFiles: append(append([]string{}, a.EssentialEtcFiles...), b.EssentialEtcFiles...),
		EssentialEtcDirs:  append(append([]string{}, a.EssentialEtcDirs...), b.EssentialEtcDirs...),
		SystemPaths:       append(append([]string{}, a.SystemPaths...), b.SystemPaths...),
		ROPaths:           append(append([]string{}, a.ROPaths...), b.ROPaths...),
		RWPaths:           append(append([]string{}, a.RWPaths...), b.RWPaths...),
	}
}

// ResolvePolicy looks up a named Policy, returning NotFoundError on miss.
func ResolvePolicy(cfg *Config, name string) (Policy, error) {
	p, ok := cfg.Policy.Policies[name]
	if !ok {
		return Policy{}, &NotFoundError{Kind: "policy", Name: name}
	}
	return p, nil
}
