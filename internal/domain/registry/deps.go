package registry

import (
	"github.com/arcadia-launcher/arcadia/backend/internal/domain/version"
	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
)

// resolveLocked checks a candidate manifest's dependencies and
// required APIs against the installed set, and rejects dependency
// cycles with an explicit graph walk instead of recursive lookups.
// Caller holds m.mu.
func (m *Manager) resolveLocked(man *types.Manifest) error {
	installed := make(map[string]*types.Manifest, len(m.extensions))
	provided := make(map[string]string) // api name -> providing extension name
	for _, ext := range m.extensions {
		if ext.State == types.StateFailed {
			continue
		}
		manifest := ext.Manifest
		installed[manifest.Name] = &manifest
		if manifest.APIs != nil {
			for _, api := range manifest.APIs.Provided {
				provided[api] = manifest.Name
			}
		}
	}

	for name, rng := range man.Dependencies {
		dep, ok := installed[name]
		if !ok {
			return &types.DependencyError{Name: name, Range: rng, Reason: "not installed"}
		}
		if !version.Satisfies(dep.Version, rng) {
			return &types.DependencyError{
				Name:   name,
				Range:  rng,
				Reason: "installed version " + dep.Version + " does not satisfy range",
			}
		}
	}

	if man.APIs != nil {
		for _, api := range man.APIs.Required {
			if _, ok := provided[api]; !ok {
				return &types.DependencyError{Name: api, Reason: "required API not provided by any installed extension"}
			}
		}
	}

	return checkCycles(man, installed)
}

// checkCycles runs Kahn's algorithm over the dependency graph of the
// installed set plus the candidate. Anything left unprocessed sits on
// a cycle.
func checkCycles(candidate *types.Manifest, installed map[string]*types.Manifest) error {
	graph := make(map[string][]string, len(installed)+1)
	indegree := make(map[string]int, len(installed)+1)

	add := func(m *types.Manifest) {
		if _, ok := indegree[m.Name]; !ok {
			indegree[m.Name] = 0
		}
		for dep := range m.Dependencies {
			graph[dep] = append(graph[dep], m.Name)
			indegree[m.Name]++
		}
	}
	for _, m := range installed {
		add(m)
	}
	add(candidate)

	// Dependencies on names outside the graph were already rejected
	// for the candidate; for installed rows they count as satisfied
	// external edges.
	for dep := range graph {
		if _, ok := indegree[dep]; !ok {
			indegree[dep] = 0
		}
	}

	queue := make([]string, 0, len(indegree))
	for name, deg := range indegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}

	processed := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		processed++
		for _, next := range graph[name] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if processed != len(indegree) {
		return &types.DependencyError{
			Name:   candidate.Name,
			Reason: "dependency cycle detected",
		}
	}
	return nil
}
