// Package declindex parses a Rust source file with tree-sitter and records
// every top-level struct, enum, trait, type alias, function, macro,
// attribute macro, and impl block, with its name and inclusive line range
// expanded to include any immediately preceding documentation comment.
package declindex

import (
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"

	"github.com/standardbeagle/cratedocs/internal/cratetypes"
	"github.com/standardbeagle/cratedocs/internal/debug"
)

// SourceExtension is the source file extension indexed: crates.io packages
// are Rust, so only ".rs" files are parsed.
const SourceExtension = ".rs"

// HasSourceExtension reports whether path ends with the Rust extension,
// case-insensitively.
func HasSourceExtension(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), SourceExtension)
}

// Index holds one bucket per declaration kind, each keyed by lowercased
// declaration name.
type Index struct {
	buckets [9]map[string][]cratetypes.Item
}

// NewIndex returns an empty Index ready for Add.
func NewIndex() *Index {
	idx := &Index{}
	for i := range idx.buckets {
		idx.buckets[i] = make(map[string][]cratetypes.Item)
	}
	return idx
}

func (idx *Index) bucket(k cratetypes.ItemKind) map[string][]cratetypes.Item {
	return idx.buckets[int(k)]
}

func (idx *Index) add(it cratetypes.Item) {
	key := strings.ToLower(it.Name)
	b := idx.bucket(it.Kind)
	b[key] = append(b[key], it)
}

// Search finds declarations matching q. kindOrder is the fixed, documented
// merge order used when q.IsAll.
func (idx *Index) Search(q cratetypes.ItemQuery) []cratetypes.Item {
	query := strings.ToLower(q.Query)

	var kinds []cratetypes.ItemKind
	if q.IsAll {
		kinds = cratetypes.KindOrder()
	} else {
		kinds = []cratetypes.ItemKind{q.Kind}
	}

	var out []cratetypes.Item
	for _, k := range kinds {
		for name, items := range idx.bucket(k) {
			if !strings.Contains(name, query) {
				continue
			}
			for _, it := range items {
				if q.Path != "" && !pathHasPrefix(it.File, q.Path) {
					continue
				}
				out = append(out, it.WithKindName())
			}
		}
	}
	return out
}

func pathHasPrefix(file, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	return file == prefix || strings.HasPrefix(file, prefix+"/")
}

var (
	parserMu sync.Mutex
	parser   *tree_sitter.Parser
	language *tree_sitter.Language
)

// ensureParser lazily creates the shared Rust parser. The caller must hold
// parserMu.
func ensureParser() *tree_sitter.Parser {
	if parser == nil {
		p := tree_sitter.NewParser()
		language = tree_sitter.NewLanguage(tree_sitter_rust.Language())
		if err := p.SetLanguage(language); err != nil {
			debug.Logf("declindex: failed to set rust language: %v", err)
			return nil
		}
		parser = p
	}
	return parser
}

// Add parses content (a file already classified as Utf8) and, on success,
// records every top-level declaration it contains. A parse failure is
// swallowed: the file is simply omitted from the index.
func (idx *Index) Add(path string, content []byte) {
	defer func() {
		if r := recover(); r != nil {
			debug.Logf("declindex: panic parsing %s: %v", path, r)
		}
	}()

	parserMu.Lock()
	p := ensureParser()
	if p == nil {
		parserMu.Unlock()
		return
	}
	buf := make([]byte, len(content))
	copy(buf, content)
	tree := p.Parse(buf, nil)
	parserMu.Unlock()

	if tree == nil {
		return
	}
	defer tree.Close()

	root := tree.RootNode()
	n := root.NamedChildCount()
	for i := uint(0); i < n; i++ {
		child := root.NamedChild(i)
		if child == nil {
			continue
		}
		idx.visitTopLevel(*child, buf, path)
	}
}

func (idx *Index) visitTopLevel(node tree_sitter.Node, content []byte, path string) {
	switch node.Kind() {
	case "struct_item":
		idx.emitNamed(node, content, path, cratetypes.KindStruct, "name")
	case "enum_item":
		idx.emitNamed(node, content, path, cratetypes.KindEnum, "name")
	case "trait_item":
		idx.emitNamed(node, content, path, cratetypes.KindTrait, "name")
	case "type_item":
		idx.emitNamed(node, content, path, cratetypes.KindTypeAlias, "name")
	case "macro_definition":
		idx.emitNamed(node, content, path, cratetypes.KindMacro, "name")
	case "function_item":
		kind := cratetypes.KindFunction
		if hasAttributeMacroMarker(node, content) {
			kind = cratetypes.KindAttributeMacro
		}
		idx.emitNamed(node, content, path, kind, "name")
	case "impl_item":
		idx.emitImpl(node, content, path)
	}
}

func (idx *Index) emitNamed(node tree_sitter.Node, content []byte, path string, kind cratetypes.ItemKind, field string) {
	nameNode := node.ChildByFieldName(field)
	if nameNode == nil {
		return
	}
	name := text(content, *nameNode)
	start, end := lineRange(node, content)
	idx.add(cratetypes.Item{Name: name, Kind: kind, File: path, StartLine: start, EndLine: end})
}

func (idx *Index) emitImpl(node tree_sitter.Node, content []byte, path string) {
	selfType := node.ChildByFieldName("type")
	if selfType == nil {
		return
	}
	start, end := lineRange(node, content)
	selfText := text(content, *selfType)

	if traitType := node.ChildByFieldName("trait"); traitType != nil {
		name := "impl " + text(content, *traitType) + " for " + selfText
		idx.add(cratetypes.Item{Name: name, Kind: cratetypes.KindImplTraitForType, File: path, StartLine: start, EndLine: end})
		return
	}

	name := "impl " + selfText
	idx.add(cratetypes.Item{Name: name, Kind: cratetypes.KindImplType, File: path, StartLine: start, EndLine: end})
}

// hasAttributeMacroMarker reports whether node's contiguous preceding
// attribute/doc-comment siblings contain the #[proc_macro_attribute] marker
// so a function annotated with #[proc_macro_attribute] is indexed as an
// attribute macro rather than a plain function.
func hasAttributeMacroMarker(node tree_sitter.Node, content []byte) bool {
	found := false
	walkPrecedingDocAndAttrs(node, content, func(sib tree_sitter.Node) {
		if sib.Kind() == "attribute_item" && strings.Contains(text(content, sib), "proc_macro_attribute") {
			found = true
		}
	})
	return found
}

// lineRange computes [start_line, end_line], both 1-based inclusive, with
// start_line expanded leftward across any contiguous preceding attribute or
// documentation-comment siblings.
func lineRange(node tree_sitter.Node, content []byte) (int, int) {
	start := int(node.StartPosition().Row) + 1
	end := int(node.EndPosition().Row) + 1

	walkPrecedingDocAndAttrs(node, content, func(sib tree_sitter.Node) {
		line := int(sib.StartPosition().Row) + 1
		if line < start {
			start = line
		}
	})

	return start, end
}

// walkPrecedingDocAndAttrs walks node's previous named siblings while they
// are outer attributes (#[...]) or comments, invoking fn for each. It stops
// at the first sibling that is neither — in particular a plain ("//", not
// "///"/"//!") comment, which is never attached to the declaration's span.
func walkPrecedingDocAndAttrs(node tree_sitter.Node, content []byte, fn func(tree_sitter.Node)) {
	sib := node.PrevNamedSibling()
	for sib != nil {
		switch sib.Kind() {
		case "attribute_item":
			fn(*sib)
		case "line_comment", "block_comment":
			t := text(content, *sib)
			if !isDocComment(t) {
				return
			}
			fn(*sib)
		default:
			return
		}
		sib = sib.PrevNamedSibling()
	}
}

func isDocComment(text string) bool {
	return strings.HasPrefix(text, "///") || strings.HasPrefix(text, "//!") || strings.HasPrefix(text, "/**")
}

func text(content []byte, n tree_sitter.Node) string {
	return string(content[n.StartByte():n.EndByte()])
}
