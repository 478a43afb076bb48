package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"

	"github.com/c360/semfuse/docstore"
	"github.com/c360/semfuse/errors"
	"github.com/c360/semfuse/schema"
)

// XMLAdapter parses an XML document. The entity's xpath_base selects the
// record elements; each field's xpath hint is resolved relative to its
// record element and supports three shapes: "@attr" (attribute of the
// record element), "Child" (text of the first matching child), and
// "Child/@attr" (attribute of the first matching child). An ARRAY field
// collects one element per match instead of stopping at the first.
type XMLAdapter struct {
	conv converter
}

// Parse extracts one document per base element.
func (a *XMLAdapter) Parse(r io.Reader, entity schema.Entity) ([]docstore.Document, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
			"Ingest", "Parse", "parse xml document")
	}

	base := doc.FindElements(entity.XPathBase)
	var docs []docstore.Document
	for _, elem := range base {
		rec := make(docstore.Document, len(entity.Fields))
		for _, f := range entity.Fields {
			if f.XPath == "" {
				continue
			}
			raw := a.extract(elem, f)
			rec[f.Label] = a.conv.value(entity.Label, f, raw)
		}
		if keepRecord(entity, rec) {
			docs = append(docs, rec)
		} else {
			a.conv.logger.Debug("skipping xml element without usable values",
				"entity", entity.Label, "element", elem.Tag)
		}
	}
	return docs, nil
}

// extract resolves one field hint against a record element. Returns nil
// when the hint does not match anything.
func (a *XMLAdapter) extract(elem *etree.Element, f schema.FieldDef) any {
	switch {
	case strings.HasPrefix(f.XPath, "@"):
		if attr := elem.SelectAttr(f.XPath[1:]); attr != nil {
			return attr.Value
		}
		return nil

	case strings.Contains(f.XPath, "/@"):
		childPath, attrName, _ := strings.Cut(f.XPath, "/@")
		if f.IsArray() {
			var values []any
			for _, child := range elem.FindElements(childPath) {
				if attr := child.SelectAttr(attrName); attr != nil {
					values = append(values, attr.Value)
				}
			}
			if len(values) == 0 {
				return nil
			}
			return values
		}
		if child := elem.FindElement(childPath); child != nil {
			if attr := child.SelectAttr(attrName); attr != nil {
				return attr.Value
			}
		}
		return nil

	default:
		if f.IsArray() {
			var values []any
			for _, child := range elem.FindElements(f.XPath) {
				values = append(values, child.Text())
			}
			if len(values) == 0 {
				return nil
			}
			return values
		}
		if child := elem.FindElement(f.XPath); child != nil {
			return child.Text()
		}
		return nil
	}
}
