package document

import (
	"errors"
	"fmt"
)

// ErrInvalidConversionRule reports a mapping table that would drop or mistype data
var ErrInvalidConversionRule = ErrInvalidDocument.WithMessage("Invalid conversion rule")

// FieldMapping copies From on the source into To on the target
type FieldMapping struct {
	From Field
	To   Field
}

// Copy maps each field onto the same name
func Copy(fields ...Field) []FieldMapping {
	m := make([]FieldMapping, 0, len(fields))
	for _, f := range fields {
		m = append(m, FieldMapping{From: f, To: f})
	}
	return m
}

// Rename maps one field onto a differently named one
func Rename(from, to Field) FieldMapping {
	return FieldMapping{From: from, To: to}
}

// ConversionRule declares how a source kind becomes a target kind.
// Every source field must be either mapped or explicitly dropped.
type ConversionRule struct {
	Source     Kind
	Target     Kind
	Header     []FieldMapping
	DropHeader []Field
	Items      []FieldMapping
	DropItems  []Field
}

func (r ConversionRule) String() string {
	return fmt.Sprintf("%s->%s", r.Source, r.Target)
}

// Validate checks the rule against the header and item schemas of both kinds
func (r ConversionRule) Validate() error {
	if !r.Source.IsValid() || !r.Target.IsValid() {
		return ErrInvalidConversionRule.WithMessage(fmt.Sprintf("rule %s: unknown kind", r))
	}
	if r.Source == r.Target {
		return ErrInvalidConversionRule.WithMessage(fmt.Sprintf("rule %s: source and target are the same kind", r))
	}
	var errs []error
	errs = append(errs, validateMappings(r, "header", HeaderSchema(r.Source), HeaderSchema(r.Target), r.Header, r.DropHeader)...)
	errs = append(errs, validateMappings(r, "item", ItemSchema(r.Source), ItemSchema(r.Target), r.Items, r.DropItems)...)
	for _, required := range []Field{ItemFieldProductCode, ItemFieldQuantity, ItemFieldUnitPrice} {
		if !mapsOnto(r.Items, required) {
			errs = append(errs, ErrInvalidConversionRule.WithMessage(
				fmt.Sprintf("rule %s: item field %s must be copied", r, required)))
		}
	}
	return errors.Join(errs...)
}

func mapsOnto(mappings []FieldMapping, f Field) bool {
	for _, m := range mappings {
		if m.From == f && m.To == f {
			return true
		}
	}
	return false
}

func validateMappings(r ConversionRule, part string, src, dst Schema, mappings []FieldMapping, dropped []Field) []error {
	var errs []error
	fail := func(format string, args ...any) {
		msg := fmt.Sprintf("rule %s: %s ", r, part) + fmt.Sprintf(format, args...)
		errs = append(errs, ErrInvalidConversionRule.WithMessage(msg))
	}

	covered := make(map[Field]int, len(src))
	written := make(map[Field]bool, len(mappings))
	for _, m := range mappings {
		srcType, ok := src[m.From]
		if !ok {
			fail("field %s does not exist on %s", m.From, r.Source)
			continue
		}
		covered[m.From]++
		dstType, ok := dst[m.To]
		if !ok {
			fail("field %s does not exist on %s", m.To, r.Target)
			continue
		}
		if srcType != dstType {
			fail("field %s (%s) cannot map to %s (%s)", m.From, srcType, m.To, dstType)
		}
		if written[m.To] {
			fail("field %s is written twice", m.To)
		}
		written[m.To] = true
	}
	for _, f := range dropped {
		if _, ok := src[f]; !ok {
			fail("dropped field %s does not exist on %s", f, r.Source)
			continue
		}
		covered[f]++
	}
	for _, f := range src.Fields() {
		switch covered[f] {
		case 0:
			fail("field %s is not mapped", f)
		case 1:
		default:
			fail("field %s is mapped more than once", f)
		}
	}
	return errs
}

type kindPair struct {
	source Kind
	target Kind
}

// RuleSet is the validated conversion graph
type RuleSet struct {
	rules map[kindPair]ConversionRule
}

// NewRuleSet validates every rule and indexes them by kind pair
func NewRuleSet(rules ...ConversionRule) (*RuleSet, error) {
	if err := ValidateConversionRules(rules); err != nil {
		return nil, err
	}
	set := &RuleSet{rules: make(map[kindPair]ConversionRule, len(rules))}
	for _, rule := range rules {
		set.rules[kindPair{rule.Source, rule.Target}] = rule
	}
	return set, nil
}

// ValidateConversionRules checks each rule's mappings and rejects a kind pair
// declared more than once. All problems are reported together.
func ValidateConversionRules(rules []ConversionRule) error {
	seen := make(map[kindPair]bool, len(rules))
	var errs []error
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		key := kindPair{rule.Source, rule.Target}
		if seen[key] {
			errs = append(errs, ErrInvalidConversionRule.WithMessage(fmt.Sprintf("rule %s declared twice", rule)))
			continue
		}
		seen[key] = true
	}
	return errors.Join(errs...)
}

// Lookup returns the rule for a kind pair
func (s *RuleSet) Lookup(source, target Kind) (ConversionRule, error) {
	rule, ok := s.rules[kindPair{source, target}]
	if !ok {
		return ConversionRule{}, ErrUnsupportedConversion.WithMessage(
			fmt.Sprintf("Cannot convert %s into %s", source, target))
	}
	return rule, nil
}

// DefaultRules returns the supported conversions: Budget→Order and Visit→Budget
func DefaultRules() []ConversionRule {
	return []ConversionRule{
		{
			Source: KindBudget,
			Target: KindOrder,
			Header: Copy(HeaderSchema(KindBudget).Fields()...),
			Items:  Copy(ItemSchema(KindBudget).Fields()...),
		},
		{
			Source:     KindVisit,
			Target:     KindBudget,
			Header:     append(Copy(coreHeaderFields.Fields()...), Rename(FieldMeasurementSketch, FieldSketchInfo)),
			DropHeader: []Field{FieldVisitStage},
			Items:      Copy(coreItemFields.Fields()...),
		},
	}
}

// MustDefaultRules builds the default rule set and panics if it is invalid
func MustDefaultRules() *RuleSet {
	set, err := NewRuleSet(DefaultRules()...)
	if err != nil {
		panic(fmt.Sprintf("invalid conversion rules: %v", err))
	}
	return set
}
