package profile

import (
	"fmt"
	"github.com/shimmeringbee/zdaremote/rules"
	"strings"
)

// RuleSetName is the name of the rule set generated from a registry.
const RuleSetName = "profiles"

// RuleSet generates a rule per profile which adds the named capability to the
// endpoint hosting the remote cluster, with the profile name as a setting.
func (r *Registry) RuleSet(capability string) rules.RuleSet {
	rs := rules.RuleSet{Name: RuleSetName}

	for _, name := range r.Names() {
		p, err := r.Get(name)
		if err != nil || len(p.Manufacturers) == 0 || len(p.Models) == 0 {
			continue
		}

		rs.Rules = append(rs.Rules, rules.Rule{
			Description: p.Name,
			Filter:      p.filter(),
			Actions: rules.Actions{
				Capabilities: rules.Capabilities{
					Add: map[string]rules.Settings{
						capability: {"Profile": p.Name},
					},
				},
			},
		})
	}

	return rs
}

func (p Profile) filter() string {
	return fmt.Sprintf("Product.Manufacturer in %s && Product.Name in %s && Endpoint.ID == %d", quoteList(p.Manufacturers), quoteList(p.Models), p.Endpoint)
}

func quoteList(ss []string) string {
	quoted := make([]string, len(ss))

	for i, s := range ss {
		quoted[i] = fmt.Sprintf("%q", s)
	}

	return fmt.Sprintf("[%s]", strings.Join(quoted, ", "))
}
