package msbuild

import (
	"strings"

	"github.com/beevik/etree"
)

// itemAttrs are the item attributes that are not metadata.
var itemAttrs = map[string]bool{
	"Include":   true,
	"Update":    true,
	"Remove":    true,
	"Exclude":   true,
	"Condition": true,
}

// Items returns every item of the given type in document order.
func (p *Project) Items(kind string) []*etree.Element {
	var out []*etree.Element
	for _, group := range p.root().SelectElements("ItemGroup") {
		out = append(out, group.SelectElements(kind)...)
	}
	return out
}

// AllItems returns every item of every type in document order.
func (p *Project) AllItems() []*etree.Element {
	var out []*etree.Element
	for _, group := range p.root().SelectElements("ItemGroup") {
		out = append(out, group.ChildElements()...)
	}
	return out
}

// AddItem appends an item to the first ItemGroup already holding items of
// the same type, creating a new ItemGroup when there is none. Metadata is
// written as attributes in the given key/value order.
func (p *Project) AddItem(kind, include string, meta ...string) *etree.Element {
	var group *etree.Element
	for _, g := range p.root().SelectElements("ItemGroup") {
		if len(g.SelectElements(kind)) > 0 {
			group = g
			break
		}
	}
	if group == nil {
		group = p.root().CreateElement("ItemGroup")
	}
	item := group.CreateElement(kind)
	item.CreateAttr("Include", include)
	for i := 0; i+1 < len(meta); i += 2 {
		item.CreateAttr(meta[i], meta[i+1])
	}
	return item
}

// RemoveItem detaches an item from its group.
func RemoveItem(item *etree.Element) {
	if parent := item.Parent(); parent != nil {
		parent.RemoveChild(item)
	}
}

// HasMetadata reports whether an item carries metadata, either as child
// elements or as attributes other than Include, Update, Remove, Exclude and
// Condition.
func HasMetadata(item *etree.Element) bool {
	if len(item.ChildElements()) > 0 {
		return true
	}
	for _, a := range item.Attr {
		if a.Space == "" && !itemAttrs[a.Key] {
			return true
		}
	}
	return false
}

// metadata returns the value of an item's metadata key, stored either as an
// attribute or as a child element.
func metadata(item *etree.Element, key string) string {
	if a := item.SelectAttr(key); a != nil {
		return a.Value
	}
	if child := item.SelectElement(key); child != nil {
		return strings.TrimSpace(child.Text())
	}
	return ""
}

// setMetadata updates metadata where it is stored, defaulting to an attribute.
func setMetadata(item *etree.Element, key, value string) {
	if a := item.SelectAttr(key); a != nil {
		a.Value = value
		return
	}
	if child := item.SelectElement(key); child != nil {
		child.SetText(value)
		return
	}
	item.CreateAttr(key, value)
}

// removeMetadata drops a metadata key in both its forms.
func removeMetadata(item *etree.Element, key string) bool {
	removed := item.RemoveAttr(key) != nil
	for _, child := range item.SelectElements(key) {
		item.RemoveChild(child)
		removed = true
	}
	return removed
}

// Property returns the value of the first property named name.
func (p *Project) Property(name string) (string, bool) {
	if el := p.propertyElement(name); el != nil {
		return strings.TrimSpace(el.Text()), true
	}
	return "", false
}

// SetProperty updates the first unconditioned property named name, or adds
// it to the first unconditioned PropertyGroup. A PropertyGroup is created at
// the top of the project when none qualifies.
func (p *Project) SetProperty(name, value string) {
	for _, group := range p.root().SelectElements("PropertyGroup") {
		if group.SelectAttr("Condition") != nil {
			continue
		}
		for _, el := range group.SelectElements(name) {
			if el.SelectAttr("Condition") == nil {
				el.SetText(value)
				return
			}
		}
	}
	var target *etree.Element
	for _, group := range p.root().SelectElements("PropertyGroup") {
		if group.SelectAttr("Condition") == nil {
			target = group
			break
		}
	}
	if target == nil {
		target = etree.NewElement("PropertyGroup")
		p.root().InsertChildAt(0, target)
	}
	target.CreateElement(name).SetText(value)
}

// RemoveProperty deletes every property named name and reports whether any
// existed.
func (p *Project) RemoveProperty(name string) bool {
	removed := false
	for _, group := range p.root().SelectElements("PropertyGroup") {
		for _, el := range group.SelectElements(name) {
			group.RemoveChild(el)
			removed = true
		}
	}
	return removed
}

func (p *Project) propertyElement(name string) *etree.Element {
	for _, group := range p.root().SelectElements("PropertyGroup") {
		if el := group.SelectElement(name); el != nil {
			return el
		}
	}
	return nil
}

// removeEmptyGroups drops ItemGroup and PropertyGroup elements left without
// children.
func (p *Project) removeEmptyGroups() {
	root := p.root()
	for _, tag := range []string{"ItemGroup", "PropertyGroup"} {
		for _, g := range root.SelectElements(tag) {
			if len(g.ChildElements()) == 0 {
				root.RemoveChild(g)
			}
		}
	}
}
