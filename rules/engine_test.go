package rules

import (
	"github.com/antonmedv/expr"
	"github.com/stretchr/testify/assert"
	"testing"
	"testing/fstest"
)

func Test_compileRules(t *testing.T) {
	t.Run("returns an error if the filter compilation fails", func(t *testing.T) {
		r := Rule{
			Filter: "INVALID UNPARSABLE FILTER",
		}

		crs, err := compileRules([]Rule{r})
		assert.Error(t, err)
		assert.Nil(t, crs)
		assert.Contains(t, err.Error(), "filter compilation:")
	})

	t.Run("returns an error if the filter is not a boolean", func(t *testing.T) {
		_, err := compileRules([]Rule{{Filter: "Endpoint.ID"}})
		assert.Error(t, err)
	})

	t.Run("returns a compiled rule", func(t *testing.T) {
		r := Rule{
			Description: "Hue remote cluster",
			Filter:      "0xfc00 in Endpoint.InClusters",
			Actions: Actions{
				Capabilities: Capabilities{
					Add: map[string]Settings{
						"PhilipsRemote": {"Profile": "PhilipsROM001"},
					},
				},
			},
		}

		cr, err := compileRules([]Rule{r})
		assert.NoError(t, err)

		assert.Equal(t, r.Description, cr[0].Description)
		assert.NotNil(t, cr[0].Filter)
		assert.Equal(t, r.Actions, cr[0].Actions)
		assert.Nil(t, cr[0].Children)
	})
}

func TestEngine_CompileRules(t *testing.T) {
	t.Run("raises an error if a depended on ruleset is not loaded", func(t *testing.T) {
		e := Engine{
			RuleSets: map[string]RuleSet{
				"one": {
					Name:      "one",
					DependsOn: []string{"two"},
				},
			},
		}

		err := e.CompileRules()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ruleset missing dependency: one->two")
	})

	t.Run("raises an error if there is a circular dependency", func(t *testing.T) {
		e := Engine{
			RuleSets: map[string]RuleSet{
				"one": {
					Name:      "one",
					DependsOn: []string{"two"},
				},
				"two": {
					Name:      "two",
					DependsOn: []string{"one"},
				},
			},
		}

		err := e.CompileRules()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ruleset circular dependency: one->two->one")
	})

	t.Run("raises an error if a rule fails to compile", func(t *testing.T) {
		e := Engine{
			RuleSets: map[string]RuleSet{
				"one": {
					Name: "one",
					Rules: []Rule{
						{
							Description: "this rule",
							Filter:      "INVALID UNPARSABLE FILTER",
						},
					},
				},
			},
		}

		err := e.CompileRules()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ruleset compilation: one: filter compilation:")
	})

	t.Run("compiles dependencies before dependants", func(t *testing.T) {
		e := Engine{
			RuleSets: map[string]RuleSet{
				"a": {
					Name:      "a",
					DependsOn: []string{"b"},
					Rules:     []Rule{{Description: "from a", Filter: "true"}},
				},
				"b": {
					Name:  "b",
					Rules: []Rule{{Description: "from b", Filter: "true"}},
				},
			},
		}

		assert.NoError(t, e.CompileRules())
		assert.Len(t, e.Rules, 2)
		assert.Equal(t, "from b", e.Rules[0].Description)
		assert.Equal(t, "from a", e.Rules[1].Description)
	})
}

func TestEngine_Execute(t *testing.T) {
	t.Run("executes all rules that match, including any descendants", func(t *testing.T) {
		i := Input{
			Product: InputProductData{Manufacturer: "manufacturer"},
		}

		match, err := expr.Compile("'manufacturer' == Product.Manufacturer", expr.Env(Input{}))
		assert.NoError(t, err)
		nomatch, err := expr.Compile("'other manufacturer' == Product.Manufacturer", expr.Env(Input{}))
		assert.NoError(t, err)

		e := Engine{
			Rules: []CompiledRule{
				{
					Filter:  nomatch,
					Actions: Actions{Capabilities: Capabilities{Add: map[string]Settings{"one": nil}}},
				},
				{
					Filter:  match,
					Actions: Actions{Capabilities: Capabilities{Add: map[string]Settings{"two": {"Endpoint": 1}}}},
					Children: []CompiledRule{
						{
							Filter:  match,
							Actions: Actions{Capabilities: Capabilities{Add: map[string]Settings{"three": nil}}},
							Children: []CompiledRule{
								{
									Filter:  match,
									Actions: Actions{Capabilities: Capabilities{Add: map[string]Settings{"four": nil}}},
								},
							},
						},
						{
							Filter:   nomatch,
							Children: []CompiledRule{{Filter: match, Actions: Actions{Capabilities: Capabilities{Add: map[string]Settings{"five": nil}}}}},
						},
					},
				},
				{
					Filter:  match,
					Actions: Actions{Capabilities: Capabilities{Remove: []string{"three"}}},
				},
			},
		}

		o, err := e.Execute(i)
		assert.NoError(t, err)

		assert.NotContains(t, o.Capabilities, "one")
		assert.Contains(t, o.Capabilities, "two")
		assert.NotContains(t, o.Capabilities, "three")
		assert.Contains(t, o.Capabilities, "four")
		assert.NotContains(t, o.Capabilities, "five")
		assert.Equal(t, 1, o.Capabilities["two"]["Endpoint"])
	})

	t.Run("later rules merge settings over earlier ones", func(t *testing.T) {
		e := New()
		assert.NoError(t, e.LoadString(`
name: remotes
rules:
  - description: all signify remotes
    filter: Product.Manufacturer == "Signify Netherlands B.V."
    actions:
      capabilities:
        add:
          PhilipsRemote:
            Profile: PhilipsRWL022
            Threshold: 300
  - description: slower threshold for one model
    filter: Product.Name == "RWL022"
    actions:
      capabilities:
        add:
          PhilipsRemote:
            Threshold: 500
`))
		assert.NoError(t, e.CompileRules())

		o, err := e.Execute(Input{Product: InputProductData{Manufacturer: "Signify Netherlands B.V.", Name: "RWL022"}})
		assert.NoError(t, err)

		assert.Equal(t, Settings{"Profile": "PhilipsRWL022", "Threshold": 500}, o.Capabilities["PhilipsRemote"])
	})
}

func TestEngine_LoadFS(t *testing.T) {
	t.Run("loads all yaml files in a FileSystem", func(t *testing.T) {
		fsys := fstest.MapFS{
			"one.yaml":         {Data: []byte("name: one\nrules: []\n")},
			"nested/two.yml":   {Data: []byte("name: two\ndepends_on: [one]\nrules: []\n")},
			"ignored.txt":      {Data: []byte("not yaml")},
			"nested/readme.md": {Data: []byte("# rules")},
		}

		e := New()
		assert.NoError(t, e.LoadFS(fsys))

		assert.Contains(t, e.RuleSets, "one")
		assert.Contains(t, e.RuleSets, "two")
		assert.Equal(t, []string{"one"}, e.RuleSets["two"].DependsOn)
		assert.NoError(t, e.CompileRules())
	})

	t.Run("reports the failing file", func(t *testing.T) {
		fsys := fstest.MapFS{
			"bad.yaml": {Data: []byte("rules: []\n")},
		}

		err := New().LoadFS(fsys)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "bad.yaml")
	})
}
