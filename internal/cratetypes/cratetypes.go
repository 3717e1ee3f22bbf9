// Package cratetypes defines the data model shared by the index builder,
// the crate cache, and the query engines: crate identity, file
// descriptors, directory listings and declaration items.
package cratetypes

import (
	"errors"
	"fmt"
)

// CrateVersion identifies an immutable (name, version) package tuple.
type CrateVersion struct {
	Name    string
	Version string
}

// ErrEmptyCrateVersion is returned when either field of a CrateVersion is empty.
var ErrEmptyCrateVersion = errors.New("cratetypes: name and version must be non-empty")

// Validate reports whether both fields are non-empty.
func (c CrateVersion) Validate() error {
	if c.Name == "" || c.Version == "" {
		return ErrEmptyCrateVersion
	}
	return nil
}

// RootDir is the top-level directory prefix inside the crate's tar archive.
func (c CrateVersion) RootDir() string {
	return fmt.Sprintf("%s-%s", c.Name, c.Version)
}

// String renders the key as "name@version", used for logging and cache-key display.
func (c CrateVersion) String() string {
	return fmt.Sprintf("%s@%s", c.Name, c.Version)
}

// Encoding classifies how a file's bytes decode.
type Encoding uint8

const (
	Utf8 Encoding = iota
	NonUtf8
)

func (e Encoding) String() string {
	if e == Utf8 {
		return "utf8"
	}
	return "non-utf8"
}

// FileDescriptor names a slice of a Package's contiguous byte buffer.
type FileDescriptor struct {
	Encoding Encoding
	Lo, Hi   int
}

// DirectoryListing is the sorted, immediate contents of one directory.
type DirectoryListing struct {
	Files          []string `json:"files"`
	Subdirectories []string `json:"subdirectories"`
}

// Empty reports whether the listing carries no entries at all, meaning the
// path it was looked up under is not a directory in this package.
func (d DirectoryListing) Empty() bool {
	return len(d.Files) == 0 && len(d.Subdirectories) == 0
}

// ItemKind enumerates the nine declaration kinds the indexer records.
type ItemKind uint8

const (
	KindStruct ItemKind = iota
	KindEnum
	KindTrait
	KindImplType
	KindImplTraitForType
	KindMacro
	KindAttributeMacro
	KindFunction
	KindTypeAlias
)

// kindOrder is the fixed, documented iteration order used when ItemQuery.Kind
// is All and results from every bucket are merged into one list.
var kindOrder = [...]ItemKind{
	KindStruct,
	KindEnum,
	KindTrait,
	KindImplType,
	KindImplTraitForType,
	KindMacro,
	KindAttributeMacro,
	KindFunction,
	KindTypeAlias,
}

// KindOrder returns the fixed merge order for "All" declaration queries.
func KindOrder() []ItemKind {
	out := make([]ItemKind, len(kindOrder))
	copy(out, kindOrder[:])
	return out
}

func (k ItemKind) String() string {
	switch k {
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindTrait:
		return "trait"
	case KindImplType:
		return "impl-type"
	case KindImplTraitForType:
		return "impl-trait-for-type"
	case KindMacro:
		return "macro"
	case KindAttributeMacro:
		return "attribute-macro"
	case KindFunction:
		return "function"
	case KindTypeAlias:
		return "type-alias"
	default:
		return "unknown"
	}
}

// ParseItemKind parses the kebab-case `type` query parameter into a single
// kind. "all" is not a kind and yields ok=false; callers that accept "all"
// check for it before calling ParseItemKind.
func ParseItemKind(s string) (ItemKind, bool) {
	switch s {
	case "struct":
		return KindStruct, true
	case "enum":
		return KindEnum, true
	case "trait":
		return KindTrait, true
	case "impl-type":
		return KindImplType, true
	case "impl-trait-for-type":
		return KindImplTraitForType, true
	case "macro":
		return KindMacro, true
	case "attribute-macro":
		return KindAttributeMacro, true
	case "function":
		return KindFunction, true
	case "type-alias":
		return KindTypeAlias, true
	default:
		return 0, false
	}
}

// Item is a single indexed top-level declaration.
type Item struct {
	Name      string   `json:"name"`
	Kind      ItemKind `json:"-"`
	KindName  string   `json:"kind"`
	File      string   `json:"file"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
}

// WithKindName stamps the human-readable kind name derived from Kind, ready
// for JSON marshaling.
func (it Item) WithKindName() Item {
	it.KindName = it.Kind.String()
	return it
}

// FileLineRange is a 1-based, inclusive [Start, End] line range. A nil bound
// means "unbounded" on that side.
type FileLineRange struct {
	Start *int
	End   *int
}

// SearchMode selects how LineQuery.Query is interpreted.
type SearchMode uint8

const (
	PlainText SearchMode = iota
	Regex
)

// LineQuery is the input to the line-search query engine.
type LineQuery struct {
	Query         string
	Mode          SearchMode
	CaseSensitive bool
	WholeWord     bool
	MaxResults    *int
	FileExt       []string
	Path          string
}

// ItemQuery is the input to the declaration-search query engine. IsAll
// overrides Kind when true.
type ItemQuery struct {
	IsAll bool
	Kind  ItemKind
	Query string
	Path  string
}

// Line is one match emitted by the line-search engine. ColumnRange is
// 1-based and half-open: [match.start+1, match.end+1), measured in bytes.
type Line struct {
	Text        string `json:"line"`
	File        string `json:"file"`
	LineNumber  int    `json:"line_number"`
	ColumnRange [2]int `json:"column_range"`
}
