package gateway

import (
	"sort"
	"strings"

	"github.com/mcpgateway/gateway/internal/catalog"
)

const defaultSearchLimit = 20

// CatalogSearch implements catalog_search: policy filter, then online
// filter (unless filters.IncludeOffline), then server/tags/risk_max
// filters, then an optional substring query, then sort, then limit.
func (m *Manager) CatalogSearch(req SearchRequest) SearchResult {
	all := m.catalog.All()
	statuses := m.serverStatuses()

	filtered := make([]catalog.ToolInfo, 0, len(all))
	for _, t := range all {
		if !m.policy.Allowed(t.ServerName, t.ToolID) {
			continue
		}
		online := statuses[t.ServerName] == catalog.StatusOnline
		if !online && !req.Filters.IncludeOffline {
			continue
		}
		if !serverMatches(req.Filters.Servers, t.ServerName) {
			continue
		}
		if !tagsIntersect(req.Filters.Tags, t.Tags) {
			continue
		}
		if req.Filters.RiskMax != "" && !t.RiskHint.AtMost(req.Filters.RiskMax) {
			continue
		}
		if req.Query != "" && !queryMatches(req.Query, t) {
			continue
		}
		filtered = append(filtered, t)
	}

	sortCandidates(filtered, req.Query)

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	truncated := len(filtered) > limit
	if truncated {
		filtered = filtered[:limit]
	}

	cards := make([]CapabilityCard, 0, len(filtered))
	for _, t := range filtered {
		availability := "offline"
		if statuses[t.ServerName] == catalog.StatusOnline {
			availability = "online"
		}
		cards = append(cards, CapabilityCard{
			ToolID:           t.ToolID,
			ServerName:       t.ServerName,
			ToolName:         t.ToolName,
			ShortDescription: t.ShortDescription,
			Tags:             t.Tags,
			Availability:     availability,
			RiskHint:         t.RiskHint,
		})
	}

	return SearchResult{
		Tools:          cards,
		TotalAvailable: len(all),
		Truncated:      truncated,
	}
}

func (m *Manager) serverStatuses() map[string]catalog.ServerStatusEnum {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]catalog.ServerStatusEnum, len(m.children))
	for name, c := range m.children {
		out[name] = c.Status().Status
	}
	return out
}

func serverMatches(servers []string, name string) bool {
	if len(servers) == 0 {
		return true
	}
	for _, s := range servers {
		if s == name {
			return true
		}
	}
	return false
}

// tagsIntersect reports whether any of filterTags matches any of
// toolTags, case-insensitively. No filter tags means every tool passes.
func tagsIntersect(filterTags, toolTags []string) bool {
	if len(filterTags) == 0 {
		return true
	}
	for _, ft := range filterTags {
		for _, tt := range toolTags {
			if strings.EqualFold(ft, tt) {
				return true
			}
		}
	}
	return false
}

func queryMatches(query string, t catalog.ToolInfo) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(t.ToolName), q) {
		return true
	}
	if strings.Contains(strings.ToLower(t.ShortDescription), q) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// sortCandidates orders filtered in place: when query is set, exact
// tool-name matches first, then starts-with matches, then lexicographic;
// otherwise plain lexicographic by tool name.
func sortCandidates(tools []catalog.ToolInfo, query string) {
	q := strings.ToLower(query)
	sort.SliceStable(tools, func(i, j int) bool {
		a, b := tools[i], tools[j]
		if query != "" {
			rank := func(t catalog.ToolInfo) int {
				name := strings.ToLower(t.ToolName)
				switch {
				case name == q:
					return 0
				case strings.HasPrefix(name, q):
					return 1
				default:
					return 2
				}
			}
			ra, rb := rank(a), rank(b)
			if ra != rb {
				return ra < rb
			}
		}
		return a.ToolName < b.ToolName
	})
}
