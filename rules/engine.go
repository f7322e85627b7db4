package rules

import (
	"errors"
	"fmt"
	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"gopkg.in/yaml.v3"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
)

var ErrFilterResult = errors.New("filter did not return a boolean")

type Engine struct {
	RuleSets map[string]RuleSet
	Rules    []CompiledRule
}

func New() *Engine {
	return &Engine{RuleSets: map[string]RuleSet{}}
}

type Capabilities struct {
	Add    map[string]Settings `yaml:"add,omitempty"`
	Remove []string            `yaml:"remove,omitempty"`
}

type Actions struct {
	Capabilities Capabilities `yaml:"capabilities"`
}

type Rule struct {
	Description string  `yaml:"description"`
	Filter      string  `yaml:"filter"`
	Actions     Actions `yaml:"actions"`
	Children    []Rule  `yaml:"children,omitempty"`
}

type CompiledRule struct {
	Description string
	Filter      *vm.Program
	Actions     Actions
	Children    []CompiledRule
}

type RuleSet struct {
	Name      string   `yaml:"name"`
	DependsOn []string `yaml:"depends_on,omitempty"`
	Rules     []Rule   `yaml:"rules"`
}

type InputProductData struct {
	Name         string
	Manufacturer string
	Version      string
	Serial       string
}

type InputNode struct {
	ManufacturerCode uint16
	Type             string
}

type InputEndpoint struct {
	ID          uint8
	ProfileID   uint16
	DeviceID    uint16
	InClusters  []uint16
	OutClusters []uint16
}

type Input struct {
	Product  InputProductData
	Node     InputNode
	Endpoint InputEndpoint
}

type Output struct {
	Capabilities map[string]Settings
}

func (e *Engine) LoadString(s string) error {
	return e.LoadReader(strings.NewReader(s))
}

func (e *Engine) LoadReader(r io.Reader) error {
	var rs RuleSet

	if err := yaml.NewDecoder(r).Decode(&rs); err != nil {
		return fmt.Errorf("ruleset decode: %w", err)
	}

	if rs.Name == "" {
		return fmt.Errorf("ruleset decode: ruleset has no name")
	}

	e.Add(rs)
	return nil
}

// LoadFS loads every .yaml file in the file system as a rule set.
func (e *Engine) LoadFS(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || (path.Ext(p) != ".yaml" && path.Ext(p) != ".yml") {
			return nil
		}

		f, err := fsys.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := e.LoadReader(f); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}

		return nil
	})
}

// Add registers a rule set, replacing any with the same name.
func (e *Engine) Add(rs RuleSet) {
	if e.RuleSets == nil {
		e.RuleSets = map[string]RuleSet{}
	}

	e.RuleSets[rs.Name] = rs
}

func (e *Engine) CompileRules() error {
	alreadyLoaded := map[string]bool{}
	e.Rules = nil

	for _, k := range e.ruleSetNames() {
		if !alreadyLoaded[k] {
			if err := e.compileRuleSet(alreadyLoaded, []string{}, k); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e *Engine) ruleSetNames() []string {
	var names []string

	for k := range e.RuleSets {
		names = append(names, k)
	}

	sort.Strings(names)
	return names
}

func (e *Engine) compileRuleSet(alreadyLoaded map[string]bool, trail []string, name string) error {
	rs, ok := e.RuleSets[name]
	if !ok {
		return fmt.Errorf("ruleset missing dependency: %s->%s", strings.Join(trail, "->"), name)
	}

	trail = append(trail, rs.Name)

	for _, k := range rs.DependsOn {
		for _, t := range trail {
			if k == t {
				return fmt.Errorf("ruleset circular dependency: %s->%s", strings.Join(trail, "->"), k)
			}
		}

		if !alreadyLoaded[k] {
			if err := e.compileRuleSet(alreadyLoaded, trail, k); err != nil {
				return err
			}
		}
	}

	if cr, err := compileRules(rs.Rules); err != nil {
		return fmt.Errorf("ruleset compilation: %s: %w", strings.Join(trail, "->"), err)
	} else {
		e.Rules = append(e.Rules, cr...)
	}

	alreadyLoaded[name] = true

	return nil
}

func compileRules(rules []Rule) ([]CompiledRule, error) {
	var compiledRules []CompiledRule

	for _, rule := range rules {
		cf, err := expr.Compile(rule.Filter, expr.Env(Input{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("filter compilation: %w", err)
		}

		if childCompiledRules, err := compileRules(rule.Children); err != nil {
			return nil, fmt.Errorf("%s: %w", rule.Description, err)
		} else {
			compiledRules = append(compiledRules, CompiledRule{
				Description: rule.Description,
				Filter:      cf,
				Actions:     rule.Actions,
				Children:    childCompiledRules,
			})
		}
	}

	return compiledRules, nil
}

// Execute runs every compiled rule against the input. Children are only
// evaluated when their parent matched, later rules override earlier ones.
func (e *Engine) Execute(i Input) (Output, error) {
	o := Output{Capabilities: map[string]Settings{}}

	if err := executeRules(e.Rules, i, &o); err != nil {
		return Output{}, err
	}

	return o, nil
}

func executeRules(rules []CompiledRule, i Input, o *Output) error {
	for _, rule := range rules {
		result, err := expr.Run(rule.Filter, i)
		if err != nil {
			return fmt.Errorf("%s: filter execution: %w", rule.Description, err)
		}

		matched, ok := result.(bool)
		if !ok {
			return fmt.Errorf("%s: %w", rule.Description, ErrFilterResult)
		}

		if !matched {
			continue
		}

		for name, settings := range rule.Actions.Capabilities.Add {
			merged := Settings{}

			for k, v := range o.Capabilities[name] {
				merged[k] = v
			}

			for k, v := range settings {
				merged[k] = v
			}

			o.Capabilities[name] = merged
		}

		for _, name := range rule.Actions.Capabilities.Remove {
			delete(o.Capabilities, name)
		}

		if err := executeRules(rule.Children, i, o); err != nil {
			return err
		}
	}

	return nil
}
