package torrc

import (
	"fmt"
	"net/netip"
	"strings"

	"golang.org/x/text/language"
)

// NodeSelectorKind tells how a NodeSelector is rendered.
type NodeSelectorKind int

const (
	// NodeFingerprint is a 40 hex digit relay identity.
	NodeFingerprint NodeSelectorKind = iota
	// NodeCountry is a two letter ISO 3166 code, or "??" for unknown.
	NodeCountry
	// NodeAddressRange is an IP prefix.
	NodeAddressRange
)

// NodeSelector is one element of an EntryNodes/ExitNodes/Exclude* list.
type NodeSelector struct {
	Kind  NodeSelectorKind
	Value string
	Range netip.Prefix
}

// Fingerprint selects a relay by identity.
func Fingerprint(hex string) NodeSelector {
	return NodeSelector{Kind: NodeFingerprint, Value: strings.TrimPrefix(hex, "$")}
}

// Country selects every relay geolocated in code.
func Country(code string) NodeSelector {
	return NodeSelector{Kind: NodeCountry, Value: code}
}

// AddressRange selects relays inside prefix.
func AddressRange(prefix netip.Prefix) NodeSelector {
	return NodeSelector{Kind: NodeAddressRange, Range: prefix}
}

// ParseNodeSelector accepts the textual forms tor itself accepts: "$HEX" or
// bare 40 hex digits, "{cc}" or a bare two letter code, and CIDR ranges or
// single addresses.
func ParseNodeSelector(s string) (NodeSelector, error) {
	s = strings.TrimSpace(s)
	switch {
	case isFingerprint(strings.TrimPrefix(s, "$")):
		return Fingerprint(s), nil
	case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
		return Country(s[1 : len(s)-1]), nil
	case len(s) == 2:
		return Country(s), nil
	}
	if prefix, err := netip.ParsePrefix(s); err == nil {
		return AddressRange(prefix), nil
	}
	if addr, err := netip.ParseAddr(s); err == nil {
		return AddressRange(netip.PrefixFrom(addr, addr.BitLen())), nil
	}
	return NodeSelector{}, fmt.Errorf("%w: %q", ErrInvalidNodeSelector, s)
}

// String renders the selector in torrc form.
func (n NodeSelector) String() string {
	switch n.Kind {
	case NodeFingerprint:
		return strings.ToUpper(n.Value)
	case NodeCountry:
		return "{" + strings.ToLower(n.Value) + "}"
	case NodeAddressRange:
		return n.Range.String()
	default:
		return ""
	}
}

func (n NodeSelector) validate(keyword string) []Issue {
	switch n.Kind {
	case NodeFingerprint:
		if !isFingerprint(n.Value) {
			return []Issue{errorf("%s: invalid fingerprint %q", keyword, n.Value)}
		}
	case NodeCountry:
		if !isCountryCode(n.Value) {
			return []Issue{errorf("%s: unknown country code %q", keyword, n.Value)}
		}
	case NodeAddressRange:
		if !n.Range.IsValid() {
			return []Issue{errorf("%s: invalid address range", keyword)}
		}
	default:
		return []Issue{errorf("%s: unknown selector kind %d", keyword, n.Kind)}
	}
	return nil
}

func isFingerprint(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func isCountryCode(code string) bool {
	if code == "??" {
		return true
	}
	if len(code) != 2 {
		return false
	}
	region, err := language.ParseRegion(code)
	return err == nil && region.IsCountry()
}

// NodeFilterOptions restricts which relays tor may use.
type NodeFilterOptions struct {
	EntryNodes       []NodeSelector
	ExitNodes        []NodeSelector
	ExcludeNodes     []NodeSelector
	ExcludeExitNodes []NodeSelector

	// StrictNodes makes ExcludeNodes binding even when it breaks
	// functionality.
	StrictNodes bool
}

var _ Entry = (*NodeFilterOptions)(nil)

func (o *NodeFilterOptions) categories() []struct {
	keyword   string
	selectors []NodeSelector
} {
	return []struct {
		keyword   string
		selectors []NodeSelector
	}{
		{"EntryNodes", o.EntryNodes},
		{"ExitNodes", o.ExitNodes},
		{"ExcludeNodes", o.ExcludeNodes},
		{"ExcludeExitNodes", o.ExcludeExitNodes},
	}
}

// Validate implements Entry.
func (o *NodeFilterOptions) Validate() []Issue {
	var issues []Issue
	for _, c := range o.categories() {
		for _, sel := range c.selectors {
			issues = append(issues, sel.validate(c.keyword)...)
		}
	}
	if o.StrictNodes && len(o.ExcludeNodes) == 0 {
		issues = append(issues, warnf("StrictNodes: has no effect without ExcludeNodes"))
	}
	return issues
}

// Serialize implements Entry.
func (o *NodeFilterOptions) Serialize(w *Writer) {
	for _, c := range o.categories() {
		if len(c.selectors) == 0 {
			continue
		}
		values := make([]string, len(c.selectors))
		for i, sel := range c.selectors {
			values[i] = sel.String()
		}
		w.Line(c.keyword, strings.Join(values, ","))
	}
	w.Bool("StrictNodes", o.StrictNodes)
}
