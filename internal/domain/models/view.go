package models

// DimensionKind is an axis by which cases can be grouped and filtered.
type DimensionKind string

const (
	DimensionFolder     DimensionKind = "folder"
	DimensionTemplate   DimensionKind = "template"
	DimensionState      DimensionKind = "state"
	DimensionCreator    DimensionKind = "creator"
	DimensionAutomation DimensionKind = "automation"
	DimensionTag        DimensionKind = "tag"
	DimensionIssue      DimensionKind = "issue"
	DimensionField      DimensionKind = "field" // user-defined custom field, identified by FieldID
)

// Dimension identifies a view axis. FieldID is set only for
// DimensionField.
type Dimension struct {
	Kind    DimensionKind `json:"kind"`
	FieldID string        `json:"field_id,omitempty"`
}

// Synthetic bucket keys. All clears the selection; Any/None exist only
// for multi-value dimensions (tag, issue, multi-select fields).
const (
	BucketAll  = "__all__"
	BucketAny  = "__any__"
	BucketNone = "__none__"
)

// Bucket is a named group of cases sharing a dimension value, with a
// live count.
type Bucket struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// FilterOp enumerates column-level filter operators.
type FilterOp string

const (
	OpEquals   FilterOp = "equals"
	OpContains FilterOp = "contains"
	OpBetween  FilterOp = "between"
	OpHasValue FilterOp = "has-value"
	OpNoValue  FilterOp = "no-value"
)

// Filter is one column-level field filter. Field is a built-in column
// ("name", "state", "template", "creator", "estimate") or "field:<id>"
// for a custom field. Between compares Low..High inclusive, numerically
// when both bounds parse as numbers.
type Filter struct {
	Field string   `json:"field"`
	Op    FilterOp `json:"op"`
	Value string   `json:"value,omitempty"`
	Low   string   `json:"low,omitempty"`
	High  string   `json:"high,omitempty"`
}

// Sort orders the filtered case list.
type Sort struct {
	Field string `json:"field"` // name, created, updated, order (default)
	Desc  bool   `json:"desc"`
}

// ViewQuery is the runtime projection a view computes against. It is
// never persisted.
type ViewQuery struct {
	ProjectID string    `json:"project_id"`
	Dimension Dimension `json:"dimension"`
	FolderID  *string   `json:"folder_id,omitempty"` // scope; nil = whole project
	Selected  []string  `json:"selected,omitempty"`  // bucket keys; empty = All
	Search    string    `json:"search,omitempty"`
	Filters   []Filter  `json:"filters,omitempty"`
	Sort      Sort      `json:"sort"`
	Page      int       `json:"page"`
	PageSize  int       `json:"page_size"`
}

// ViewPage is the computed result: grouped counts plus the filtered,
// sorted page of cases.
type ViewPage struct {
	Buckets    []Bucket   `json:"buckets"`
	All        Bucket     `json:"all"`
	Cases      []TestCase `json:"cases"`
	TotalCount int        `json:"total_count"`
	Page       int        `json:"page"`
	PageCount  int        `json:"page_count"`
	PageSize   int        `json:"page_size"`
	ShowPager  bool       `json:"show_pager"` // false when everything fits on one page
}

// ViewState carries a query through UI interactions, implementing the
// selection and pagination-reset rules.
type ViewState struct {
	Query ViewQuery
}

// SelectBucket applies a bucket click. Without the multi-select
// modifier the selection is replaced; with it, membership toggles
// without clearing other selections. Selecting All clears the set.
// Any selection change resets pagination to page 1.
func (s *ViewState) SelectBucket(key string, multi bool) {
	defer func() { s.Query.Page = 1 }()

	if key == BucketAll {
		s.Query.Selected = nil
		return
	}
	if !multi {
		s.Query.Selected = []string{key}
		return
	}
	for i, k := range s.Query.Selected {
		if k == key {
			s.Query.Selected = append(s.Query.Selected[:i], s.Query.Selected[i+1:]...)
			return
		}
	}
	s.Query.Selected = append(s.Query.Selected, key)
}

// SetSearch replaces the free-text search and resets to page 1.
func (s *ViewState) SetSearch(text string) {
	s.Query.Search = text
	s.Query.Page = 1
}

// SetFolder changes the folder scope and resets to page 1.
func (s *ViewState) SetFolder(folderID *string) {
	s.Query.FolderID = folderID
	s.Query.Page = 1
}

// SetFilters replaces the column filters and resets to page 1.
func (s *ViewState) SetFilters(filters []Filter) {
	s.Query.Filters = filters
	s.Query.Page = 1
}

// SetPage moves to the given page, keeping all filters.
func (s *ViewState) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	s.Query.Page = page
}

// SetPageSize changes the page size, preserving filters. The engine
// clamps the page index to the recomputed page count.
func (s *ViewState) SetPageSize(size int) {
	s.Query.PageSize = size
}
