package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"quiver/internal/config"
	"quiver/internal/domain"
	"quiver/internal/domain/models"
	"quiver/internal/domain/repositories"
	"quiver/internal/domain/services"
)

// rootBucketKey groups cases that live directly at the project root in
// the folder dimension.
const rootBucketKey = "__project_root__"

type viewService struct {
	caseRepo   repositories.CaseRepository
	folderRepo repositories.FolderRepository
	tagRepo    repositories.TagRepository
	logger     *slog.Logger
}

// NewViewService creates a new dynamic view service
func NewViewService(
	caseRepo repositories.CaseRepository,
	folderRepo repositories.FolderRepository,
	tagRepo repositories.TagRepository,
	logger *slog.Logger,
) services.ViewService {
	return &viewService{
		caseRepo:   caseRepo,
		folderRepo: folderRepo,
		tagRepo:    tagRepo,
		logger:     logger,
	}
}

// Query runs the full pipeline: scope, bucket selection, search,
// column filters, sort, paginate. Read-only; the result reflects the
// latest committed state at the time each repository read ran.
func (s *viewService) Query(ctx context.Context, q *models.ViewQuery) (*models.ViewPage, error) {
	if q.ProjectID == "" {
		return nil, &domain.ValidationError{Message: "project_id is required"}
	}
	if err := validateFilters(q.Filters); err != nil {
		return nil, err
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = config.DefaultPageSize
	}
	if pageSize > config.MaxPageSize {
		pageSize = config.MaxPageSize
	}

	cases, err := s.caseRepo.ListByProject(ctx, q.ProjectID)
	if err != nil {
		return nil, err
	}

	// (1) scope to the selected folder subtree, except for the folder
	// dimension where the buckets themselves are the folders.
	if q.FolderID != nil && q.Dimension.Kind != models.DimensionFolder {
		scope, err := s.folderScope(ctx, q.ProjectID, *q.FolderID)
		if err != nil {
			return nil, err
		}
		cases = filterCases(cases, func(c *models.TestCase) bool {
			return c.FolderID != nil && scope[*c.FolderID]
		})
	}

	labels, err := s.bucketLabels(ctx, q.ProjectID, q.Dimension)
	if err != nil {
		return nil, err
	}
	multi := isMultiValue(q.Dimension, cases)
	buckets, all := buildBuckets(cases, q.Dimension, q.Selected, multi, labels)

	// (2) apply the bucket selection.
	if len(q.Selected) > 0 {
		selected := toSet(q.Selected)
		cases = filterCases(cases, func(c *models.TestCase) bool {
			return matchesSelection(dimensionValues(c, q.Dimension), selected)
		})
	}

	// (3) free-text search: case-insensitive substring against name.
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		cases = filterCases(cases, func(c *models.TestCase) bool {
			return strings.Contains(strings.ToLower(c.Name), needle)
		})
	}

	// (4) column-level field filters.
	for _, f := range q.Filters {
		filter := f
		cases = filterCases(cases, func(c *models.TestCase) bool {
			return matchesFilter(c, &filter)
		})
	}

	// (5) sort.
	sortCases(cases, q.Sort)

	// (6) paginate, clamping the page index to the recomputed count.
	total := len(cases)
	pageCount := (total + pageSize - 1) / pageSize
	if pageCount == 0 {
		pageCount = 1
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	if page > pageCount {
		page = pageCount
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}
	items := cases[start:end]

	return &models.ViewPage{
		Buckets:    buckets,
		All:        all,
		Cases:      items,
		TotalCount: total,
		Page:       page,
		PageCount:  pageCount,
		PageSize:   pageSize,
		ShowPager:  pageCount > 1,
	}, nil
}

// HasData reports whether any active case has a value for the
// dimension. A presentation contract: dimensions without data are
// hidden entirely, not disabled.
func (s *viewService) HasData(ctx context.Context, projectID string, d models.Dimension) (bool, error) {
	cases, err := s.caseRepo.ListByProject(ctx, projectID)
	if err != nil {
		return false, err
	}
	for i := range cases {
		if len(dimensionValues(&cases[i], d)) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Dimensions lists the selectable dimensions: built-in axes plus one
// per custom field seen on any case, filtered by HasData.
func (s *viewService) Dimensions(ctx context.Context, projectID string) ([]models.Dimension, error) {
	cases, err := s.caseRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	candidates := []models.Dimension{
		{Kind: models.DimensionFolder},
		{Kind: models.DimensionTemplate},
		{Kind: models.DimensionState},
		{Kind: models.DimensionCreator},
		{Kind: models.DimensionAutomation},
		{Kind: models.DimensionTag},
		{Kind: models.DimensionIssue},
	}
	fieldIDs := make(map[string]bool)
	for i := range cases {
		for id := range cases[i].Fields {
			fieldIDs[id] = true
		}
	}
	ordered := make([]string, 0, len(fieldIDs))
	for id := range fieldIDs {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)
	for _, id := range ordered {
		candidates = append(candidates, models.Dimension{Kind: models.DimensionField, FieldID: id})
	}

	var out []models.Dimension
	for _, d := range candidates {
		for i := range cases {
			if len(dimensionValues(&cases[i], d)) > 0 {
				out = append(out, d)
				break
			}
		}
	}
	return out, nil
}

// folderScope returns the id set of the folder and all its active
// descendants.
func (s *viewService) folderScope(ctx context.Context, projectID, folderID string) (map[string]bool, error) {
	folders, err := s.folderRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	children := make(map[string][]string)
	for _, f := range folders {
		if f.ParentID != nil {
			children[*f.ParentID] = append(children[*f.ParentID], f.ID)
		}
	}
	scope := map[string]bool{folderID: true}
	queue := []string{folderID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range children[id] {
			if !scope[child] {
				scope[child] = true
				queue = append(queue, child)
			}
		}
	}
	return scope, nil
}

// bucketLabels resolves bucket keys to display labels for dimensions
// whose keys are ids (folders, tags). Other dimensions label buckets
// with the value itself.
func (s *viewService) bucketLabels(ctx context.Context, projectID string, d models.Dimension) (map[string]string, error) {
	labels := make(map[string]string)
	switch d.Kind {
	case models.DimensionFolder:
		folders, err := s.folderRepo.ListByProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		for _, f := range folders {
			labels[f.ID] = f.Name
		}
		labels[rootBucketKey] = "Root"
	case models.DimensionTag:
		tags, err := s.tagRepo.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range tags {
			labels[t.ID] = t.Name
		}
	case models.DimensionAutomation:
		labels["automated"] = "Automated"
		labels["manual"] = "Manual"
	}
	return labels, nil
}

// dimensionValues extracts the bucket values a case contributes to a
// dimension. Multi-value dimensions may return several; an empty slice
// means the case has no value (the None bucket).
func dimensionValues(c *models.TestCase, d models.Dimension) []string {
	switch d.Kind {
	case models.DimensionFolder:
		if c.FolderID == nil {
			return []string{rootBucketKey}
		}
		return []string{*c.FolderID}
	case models.DimensionTemplate:
		if c.TemplateID == "" {
			return nil
		}
		return []string{c.TemplateID}
	case models.DimensionState:
		if c.State == "" {
			return nil
		}
		return []string{c.State}
	case models.DimensionCreator:
		if c.CreatorID == "" {
			return nil
		}
		return []string{c.CreatorID}
	case models.DimensionAutomation:
		if c.Automated {
			return []string{"automated"}
		}
		return []string{"manual"}
	case models.DimensionTag:
		return c.Tags
	case models.DimensionIssue:
		keys := make([]string, 0, len(c.Issues))
		for _, ref := range c.Issues {
			keys = append(keys, ref.Key())
		}
		return keys
	case models.DimensionField:
		v, ok := c.Fields[d.FieldID]
		if !ok || !v.HasValue() {
			return nil
		}
		return v.Values()
	}
	return nil
}

// isMultiValue reports whether the dimension can contribute several
// values per case, which is what earns it Any/None buckets. Custom
// fields are multi-value exactly when backed by a multi-select.
func isMultiValue(d models.Dimension, cases []models.TestCase) bool {
	switch d.Kind {
	case models.DimensionTag, models.DimensionIssue:
		return true
	case models.DimensionField:
		for i := range cases {
			if v, ok := cases[i].Fields[d.FieldID]; ok {
				return v.Kind == models.FieldMultiSelect
			}
		}
	}
	return false
}

// buildBuckets computes per-value counts over the scoped set plus the
// synthetic All bucket, with Any/None for multi-value dimensions.
func buildBuckets(cases []models.TestCase, d models.Dimension, selected []string, multi bool, labels map[string]string) ([]models.Bucket, models.Bucket) {
	counts := make(map[string]int)
	withAny, withNone := 0, 0
	for i := range cases {
		values := dimensionValues(&cases[i], d)
		if len(values) == 0 {
			withNone++
			continue
		}
		withAny++
		seen := make(map[string]bool, len(values))
		for _, v := range values {
			if !seen[v] { // a case counts once per bucket
				counts[v]++
				seen[v] = true
			}
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(labelFor(keys[i], labels)) < strings.ToLower(labelFor(keys[j], labels))
	})

	var buckets []models.Bucket
	if multi {
		buckets = append(buckets,
			models.Bucket{Key: models.BucketAny, Label: anyLabel(d), Count: withAny},
			models.Bucket{Key: models.BucketNone, Label: noneLabel(d), Count: withNone},
		)
	} else if withNone > 0 {
		// Single-value dimensions surface valueless cases through a
		// None bucket, keeping All equal to the sum of the buckets.
		buckets = append(buckets, models.Bucket{Key: models.BucketNone, Label: noneLabel(d), Count: withNone})
	}
	for _, k := range keys {
		buckets = append(buckets, models.Bucket{Key: k, Label: labelFor(k, labels), Count: counts[k]})
	}

	all := models.Bucket{Key: models.BucketAll, Label: "All", Count: len(cases)}
	if multi && len(selected) > 0 {
		// For multi-value dimensions All reports how many cases match
		// any currently selected bucket.
		set := toSet(selected)
		matched := 0
		for i := range cases {
			if matchesSelection(dimensionValues(&cases[i], d), set) {
				matched++
			}
		}
		all.Count = matched
	}
	return buckets, all
}

func labelFor(key string, labels map[string]string) string {
	if label, ok := labels[key]; ok {
		return label
	}
	return key
}

func anyLabel(d models.Dimension) string {
	switch d.Kind {
	case models.DimensionTag:
		return "Any Tag"
	case models.DimensionIssue:
		return "Any Issue"
	}
	return "Any Value"
}

func noneLabel(d models.Dimension) string {
	switch d.Kind {
	case models.DimensionTag:
		return "No Tags"
	case models.DimensionIssue:
		return "No Issues"
	}
	return "No Value"
}

func matchesSelection(values []string, selected map[string]bool) bool {
	if selected[models.BucketNone] && len(values) == 0 {
		return true
	}
	if selected[models.BucketAny] && len(values) > 0 {
		return true
	}
	for _, v := range values {
		if selected[v] {
			return true
		}
	}
	return false
}

// validateFilters rejects malformed filters before any work runs; the
// between guard mirrors the client-side check so a bad range can never
// reach the scan.
func validateFilters(filters []models.Filter) error {
	for _, f := range filters {
		switch f.Op {
		case models.OpEquals, models.OpContains, models.OpBetween, models.OpHasValue, models.OpNoValue:
		default:
			return &domain.ValidationError{Message: fmt.Sprintf("unknown filter operator %q", f.Op)}
		}
		if f.Op == models.OpBetween {
			if compareValues(f.Low, f.High) > 0 {
				return &domain.ValidationError{
					Message: fmt.Sprintf("between filter on %q: low %q exceeds high %q", f.Field, f.Low, f.High),
				}
			}
		}
	}
	return nil
}

// columnValues reads the filter target from a case: a built-in column
// or "field:<id>" for a custom field.
func columnValues(c *models.TestCase, field string) []string {
	if id, ok := strings.CutPrefix(field, "field:"); ok {
		v, present := c.Fields[id]
		if !present || !v.HasValue() {
			return nil
		}
		return v.Values()
	}
	switch field {
	case "name":
		return []string{c.Name}
	case "state":
		if c.State == "" {
			return nil
		}
		return []string{c.State}
	case "template":
		return []string{c.TemplateID}
	case "creator":
		return []string{c.CreatorID}
	case "estimate":
		if c.Estimate == "" {
			return nil
		}
		return []string{c.Estimate}
	}
	return nil
}

func matchesFilter(c *models.TestCase, f *models.Filter) bool {
	values := columnValues(c, f.Field)
	switch f.Op {
	case models.OpHasValue:
		return len(values) > 0
	case models.OpNoValue:
		return len(values) == 0
	case models.OpEquals:
		for _, v := range values {
			if strings.EqualFold(v, f.Value) {
				return true
			}
		}
		return false
	case models.OpContains:
		needle := strings.ToLower(f.Value)
		for _, v := range values {
			if strings.Contains(strings.ToLower(v), needle) {
				return true
			}
		}
		return false
	case models.OpBetween:
		for _, v := range values {
			if compareValues(f.Low, v) <= 0 && compareValues(v, f.High) <= 0 {
				return true
			}
		}
		return false
	}
	return false
}

// compareValues orders two column values numerically when both parse as
// numbers, lexically otherwise.
func compareValues(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

func sortCases(cases []models.TestCase, s models.Sort) {
	less := func(a, b *models.TestCase) bool { return a.Order < b.Order }
	switch s.Field {
	case "name":
		less = func(a, b *models.TestCase) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case "created":
		less = func(a, b *models.TestCase) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "updated":
		less = func(a, b *models.TestCase) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	}
	sort.SliceStable(cases, func(i, j int) bool {
		if s.Desc {
			return less(&cases[j], &cases[i])
		}
		return less(&cases[i], &cases[j])
	})
}

func filterCases(cases []models.TestCase, keep func(*models.TestCase) bool) []models.TestCase {
	out := cases[:0]
	for i := range cases {
		if keep(&cases[i]) {
			out = append(out, cases[i])
		}
	}
	return out
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
