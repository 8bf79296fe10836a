// Package group clusters conflict edges into resolvable groups.
package group

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/clash/internal/domain/model"
)

// namespace scopes group ids so they never collide with other UUIDv5 users.
var namespace = uuid.MustParse("6f1c3b0e-4f3a-5c8e-9a57-2d9b1c7e0a41")

// idSeparator cannot occur in catalog guids.
const idSeparator = "\x1f"

// ID returns the stable identifier of a group with the given members. The
// order of members does not matter.
func ID(members []string) string {
	sorted := append([]string(nil), members...)
	sort.Strings(sorted)
	return uuid.NewSHA1(namespace, []byte(strings.Join(sorted, idSeparator))).String()
}

// Build returns the connected components of the edge graph that have at
// least two members. Groups are ordered by their first member and carry the
// edges that fall inside them. Status is left unresolved; see Status.
func Build(edges []model.ConflictEdge) []model.ConflictGroup {
	uf := newUnionFind()
	for _, e := range edges {
		if e.A == e.B {
			continue
		}
		uf.union(uf.index(e.A), uf.index(e.B))
	}

	byRoot := map[int][]string{}
	for idx, guid := range uf.names {
		r := uf.find(idx)
		byRoot[r] = append(byRoot[r], guid)
	}

	groups := make([]model.ConflictGroup, 0, len(byRoot))
	for _, members := range byRoot {
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		groups = append(groups, model.ConflictGroup{
			ID:      ID(members),
			Members: members,
			Status:  model.StatusUnresolved,
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Members[0] < groups[j].Members[0] })

	pos := make(map[int]int, len(groups))
	for i, g := range groups {
		pos[uf.find(uf.ids[g.Members[0]])] = i
	}
	for _, e := range edges {
		if e.A == e.B {
			continue
		}
		i := pos[uf.find(uf.ids[e.A])]
		groups[i].Edges = append(groups[i].Edges, e)
	}
	return groups
}

// Status derives the resolution state of a group from its decisions.
// Decisions for events outside members are ignored.
func Status(members []string, decisions map[string]model.Attendance) model.Status {
	decided := 0
	for _, m := range members {
		if _, ok := decisions[m]; ok {
			decided++
		}
	}
	switch {
	case decided == 0:
		return model.StatusUnresolved
	case decided == len(members):
		return model.StatusResolved
	default:
		return model.StatusPartiallyResolved
	}
}

// unionFind is a disjoint-set forest over an arena of indices.
type unionFind struct {
	ids    map[string]int
	names  []string
	parent []int
	rank   []int
}

func newUnionFind() *unionFind {
	return &unionFind{ids: map[string]int{}}
}

func (u *unionFind) index(guid string) int {
	if i, ok := u.ids[guid]; ok {
		return i
	}
	i := len(u.names)
	u.ids[guid] = i
	u.names = append(u.names, guid)
	u.parent = append(u.parent, i)
	u.rank = append(u.rank, 0)
	return i
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
