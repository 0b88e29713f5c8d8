package catalog

import (
	"fmt"
	"regexp"

	"mercator-hq/lethe/pkg/retention"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Override adjusts a built-in policy. Nil fields keep the built-in value.
type Override struct {
	RetentionDays        *int
	NotificationDays     *int
	NotifyBeforeDeletion *bool
}

// Violation is one broken catalog invariant.
type Violation struct {
	Category retention.Category
	Field    string
	Message  string
}

// String implements fmt.Stringer.
func (v Violation) String() string {
	if v.Category == "" {
		return fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return fmt.Sprintf("%s.%s: %s", v.Category, v.Field, v.Message)
}

// Catalog is the read-only table of retention policies and store targets.
// It is safe for concurrent use once constructed.
type Catalog struct {
	policies map[retention.Category]retention.Policy
	targets  map[retention.Category]Target
}

// New builds a catalog from policies and targets, applies overrides and
// validates the result. Any violation is returned as a ConfigurationError.
func New(policies []retention.Policy, targets []Target, overrides map[retention.Category]Override) (*Catalog, error) {
	c := &Catalog{
		policies: make(map[retention.Category]retention.Policy, len(policies)),
		targets:  make(map[retention.Category]Target, len(targets)),
	}

	var violations []Violation
	for _, p := range policies {
		if _, dup := c.policies[p.Category]; dup {
			violations = append(violations, Violation{Category: p.Category, Field: "policy", Message: "duplicate policy"})
			continue
		}
		c.policies[p.Category] = p
	}
	for _, t := range targets {
		if _, dup := c.targets[t.Category]; dup {
			violations = append(violations, Violation{Category: t.Category, Field: "target", Message: "duplicate store target"})
			continue
		}
		c.targets[t.Category] = t
	}

	for category, o := range overrides {
		p, ok := c.policies[category]
		if !ok {
			violations = append(violations, Violation{Category: category, Field: "override", Message: "override for unknown category"})
			continue
		}
		if o.RetentionDays != nil {
			p.RetentionDays = *o.RetentionDays
		}
		if o.NotificationDays != nil {
			p.NotificationDays = *o.NotificationDays
		}
		if o.NotifyBeforeDeletion != nil {
			p.NotifyBeforeDeletion = *o.NotifyBeforeDeletion
		}
		c.policies[category] = p
	}

	violations = append(violations, c.Validate()...)
	if len(violations) > 0 {
		return nil, ViolationsError(violations)
	}
	return c, nil
}

// Default returns the built-in catalog with overrides applied.
func Default(overrides map[retention.Category]Override) (*Catalog, error) {
	return New(DefaultPolicies(), DefaultTargets(), overrides)
}

// Validate returns every violated catalog invariant. An empty result means
// the catalog is complete and internally consistent.
func (c *Catalog) Validate() []Violation {
	var violations []Violation

	for _, category := range retention.AllCategories() {
		if _, ok := c.policies[category]; !ok {
			violations = append(violations, Violation{Category: category, Field: "policy", Message: "no policy declared"})
		}
		if _, ok := c.targets[category]; !ok {
			violations = append(violations, Violation{Category: category, Field: "target", Message: "no store target declared"})
		}
	}

	for _, category := range retention.AllCategories() {
		p, ok := c.policies[category]
		if !ok {
			continue
		}
		if p.Category != category {
			violations = append(violations, Violation{Category: category, Field: "category", Message: fmt.Sprintf("policy declares category %q", p.Category)})
		}
		if p.RetentionDays < 0 {
			violations = append(violations, Violation{Category: category, Field: "retention_days", Message: fmt.Sprintf("must be >= 0, got %d", p.RetentionDays)})
		}
		if p.NotifyBeforeDeletion {
			if p.NotificationDays <= 0 {
				violations = append(violations, Violation{Category: category, Field: "notification_days", Message: fmt.Sprintf("must be > 0 when notifications are enabled, got %d", p.NotificationDays)})
			} else if p.NotificationDays >= p.RetentionDays {
				violations = append(violations, Violation{Category: category, Field: "notification_days", Message: fmt.Sprintf("must be < retention_days (%d), got %d", p.RetentionDays, p.NotificationDays)})
			}
		}
		if p.RequiresManualReview && p.AllowHardDelete {
			violations = append(violations, Violation{Category: category, Field: "allow_hard_delete", Message: "manual review categories cannot be hard deleted"})
		}
	}

	tables := make(map[string]retention.Category)
	for _, category := range retention.AllCategories() {
		t, ok := c.targets[category]
		if !ok {
			continue
		}
		if !identifierPattern.MatchString(t.Table) {
			violations = append(violations, Violation{Category: category, Field: "target.table", Message: fmt.Sprintf("invalid table name %q", t.Table)})
			continue
		}
		if other, dup := tables[t.Table]; dup {
			violations = append(violations, Violation{Category: category, Field: "target.table", Message: fmt.Sprintf("table %q already used by %s", t.Table, other)})
		}
		tables[t.Table] = category
		for _, col := range t.Columns {
			if !identifierPattern.MatchString(col.Name) {
				violations = append(violations, Violation{Category: category, Field: "target.columns", Message: fmt.Sprintf("invalid column name %q", col.Name)})
			}
		}
	}

	for category := range c.policies {
		if !category.Valid() {
			violations = append(violations, Violation{Category: category, Field: "policy", Message: "unknown category"})
		}
	}
	return violations
}

// Get returns the policy of a category. The catalog is complete by
// construction, so Get panics only for categories outside the closed set.
func (c *Catalog) Get(category retention.Category) retention.Policy {
	p, ok := c.policies[category]
	if !ok {
		panic(fmt.Sprintf("catalog: no policy for category %q", category))
	}
	return p
}

// Target returns the store target of a category.
func (c *Catalog) Target(category retention.Category) Target {
	t, ok := c.targets[category]
	if !ok {
		panic(fmt.Sprintf("catalog: no store target for category %q", category))
	}
	return t
}

// Policies returns every policy in category order.
func (c *Catalog) Policies() []retention.Policy {
	out := make([]retention.Policy, 0, len(c.policies))
	for _, category := range retention.AllCategories() {
		out = append(out, c.policies[category])
	}
	return out
}

// Targets returns every store target in category order.
func (c *Catalog) Targets() []Target {
	out := make([]Target, 0, len(c.targets))
	for _, category := range retention.AllCategories() {
		out = append(out, c.targets[category])
	}
	return out
}

// Notifying returns the categories whose policy sends notices.
func (c *Catalog) Notifying() []retention.Category {
	var out []retention.Category
	for _, p := range c.Policies() {
		if p.Notifies() {
			out = append(out, p.Category)
		}
	}
	return out
}

// ViolationsError wraps violations into a single ConfigurationError.
func ViolationsError(violations []Violation) error {
	msgs := make([]string, len(violations))
	for i, v := range violations {
		msgs[i] = v.String()
	}
	return retention.NewConfigurationError("catalog", nil, msgs...)
}
