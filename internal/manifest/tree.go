// Package manifest parses the XSREGISTER.XML manifest of a settings archive
// into a domain.Configuration.
package manifest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Attr is one XML attribute, in document order.
type Attr struct {
	Name  string
	Value string
}

// Node is a generic XML element.
type Node struct {
	Name     string
	Attrs    []Attr
	Text     string
	Children []*Node
	Parent   *Node
}

// Attr returns the value of the first attribute whose name matches one of
// names, case-insensitively.
func (n *Node) Attr(names ...string) (string, bool) {
	for _, want := range names {
		for _, a := range n.Attrs {
			if strings.EqualFold(a.Name, want) {
				return a.Value, true
			}
		}
	}
	return "", false
}

// AttrOr is Attr with a fallback.
func (n *Node) AttrOr(fallback string, names ...string) string {
	if v, ok := n.Attr(names...); ok {
		return v
	}
	return fallback
}

// Is reports whether the element name matches one of names, case-insensitively.
func (n *Node) Is(names ...string) bool {
	for _, name := range names {
		if strings.EqualFold(n.Name, name) {
			return true
		}
	}
	return false
}

// Path returns the slash-joined element names from the root to n.
func (n *Node) Path() string {
	var parts []string
	for cur := n; cur != nil; cur = cur.Parent {
		parts = append(parts, cur.Name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// buildTree decodes data into a Node tree and returns its root element.
func buildTree(data []byte) (*Node, error) {
	data, err := toUTF8(data)
	if err != nil {
		return nil, err
	}

	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charsetReader

	var root, current *Node
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("XML parse error: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			node := &Node{Name: t.Name.Local, Parent: current}
			for _, a := range t.Attr {
				if a.Name.Space == "" || a.Name.Space == "xml" {
					node.Attrs = append(node.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
				}
			}
			if current == nil {
				if root != nil {
					return nil, fmt.Errorf("XML parse error: multiple root elements")
				}
				root = node
			} else {
				current.Children = append(current.Children, node)
			}
			current = node

		case xml.CharData:
			if current != nil {
				if text := strings.TrimSpace(string(t)); text != "" {
					current.Text += text
				}
			}

		case xml.EndElement:
			if current != nil {
				current = current.Parent
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("XML parse error: no root element")
	}
	return root, nil
}

// toUTF8 transcodes UTF-16 documents (detected by BOM) to UTF-8. Windows
// exports are frequently written as UTF-16LE.
func toUTF8(data []byte) ([]byte, error) {
	if len(data) < 2 {
		return data, nil
	}
	if (data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF) {
		dec := unicode.BOMOverride(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder())
		out, _, err := transform.Bytes(dec, data)
		if err != nil {
			return nil, fmt.Errorf("decode UTF-16 manifest: %w", err)
		}
		return out, nil
	}
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}), nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	var enc encoding.Encoding
	switch strings.ToLower(label) {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return input, nil
	case "utf-16", "utf-16le", "utf-16be":
		// Already transcoded by toUTF8.
		return input, nil
	case "windows-1252", "cp1252":
		enc = charmap.Windows1252
	case "iso-8859-1", "latin1", "latin-1":
		enc = charmap.ISO8859_1
	case "iso-8859-15":
		enc = charmap.ISO8859_15
	default:
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}
