package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"

	"quiver/internal/domain"
	"quiver/internal/domain/models"
	"quiver/internal/domain/repositories"
	"quiver/internal/domain/services"
)

type diffService struct {
	versionRepo repositories.VersionRepository
	caseRepo    repositories.CaseRepository
	logger      *slog.Logger
}

// NewDiffService creates a new version & diff service
func NewDiffService(
	versionRepo repositories.VersionRepository,
	caseRepo repositories.CaseRepository,
	logger *slog.Logger,
) services.DiffService {
	return &diffService{
		versionRepo: versionRepo,
		caseRepo:    caseRepo,
		logger:      logger,
	}
}

// GetVersion retrieves version number n
func (s *diffService) GetVersion(ctx context.Context, caseID string, number int) (*models.Version, error) {
	return s.versionRepo.Get(ctx, caseID, number)
}

// ListVersions retrieves the full chain, ascending
func (s *diffService) ListVersions(ctx context.Context, caseID string) ([]models.Version, error) {
	return s.versionRepo.List(ctx, caseID)
}

// Diff compares version n against n-1. Versions are immutable, so the
// result is the same whenever it is computed.
func (s *diffService) Diff(ctx context.Context, caseID string, number int) ([]models.Change, error) {
	if number <= 1 {
		return nil, &domain.NotFoundError{
			Message: fmt.Sprintf("case %s version %d has no predecessor to diff against", caseID, number),
		}
	}
	newV, err := s.versionRepo.Get(ctx, caseID, number)
	if err != nil {
		return nil, err
	}
	oldV, err := s.versionRepo.Get(ctx, caseID, number-1)
	if err != nil {
		return nil, err
	}
	return computeChanges(&oldV.Content, &newV.Content), nil
}

// VersionView returns a historical snapshot with the case's current tag
// and issue state overlaid
func (s *diffService) VersionView(ctx context.Context, caseID, projectID string, number int) (*services.VersionView, error) {
	v, err := s.versionRepo.Get(ctx, caseID, number)
	if err != nil {
		return nil, err
	}
	c, err := s.caseRepo.GetByID(ctx, caseID, projectID)
	if err != nil {
		return nil, err
	}
	return &services.VersionView{
		Version: v,
		Tags:    c.Tags,
		Issues:  c.Issues,
	}, nil
}

// computeChanges produces the field-level diff between two version
// contents. Scalar fields yield a record only when changed; the step
// list, when changed at all, yields one record per entry in
// final-version order with removed entries interleaved at their
// original positions. Tags and issues are live references and never
// appear here.
func computeChanges(old, new *models.VersionContent) []models.Change {
	var changes []models.Change

	scalar := func(field string, oldVal, newVal any, equal bool) {
		if !equal {
			changes = append(changes, models.Change{
				Field: field, Kind: models.ChangeChanged, Old: oldVal, New: newVal,
			})
		}
	}
	scalar("name", old.Name, new.Name, old.Name == new.Name)
	scalar("template_id", old.TemplateID, new.TemplateID, old.TemplateID == new.TemplateID)
	scalar("state", old.State, new.State, old.State == new.State)
	scalar("estimate", old.Estimate, new.Estimate, old.Estimate == new.Estimate)
	scalar("automated", old.Automated, new.Automated, old.Automated == new.Automated)
	scalar("document", old.Document, new.Document, bytes.Equal(old.Document, new.Document))

	changes = append(changes, fieldChanges(old.Fields, new.Fields)...)
	changes = append(changes, stepChanges(old.Steps, new.Steps)...)
	return changes
}

// fieldChanges diffs the custom-field maps, one record per affected
// field id, in id order for deterministic output.
func fieldChanges(old, new map[string]models.FieldValue) []models.Change {
	ids := make(map[string]bool, len(old)+len(new))
	for id := range old {
		ids[id] = true
	}
	for id := range new {
		ids[id] = true
	}
	ordered := make([]string, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	var changes []models.Change
	for _, id := range ordered {
		oldVal, hadOld := old[id]
		newVal, hasNew := new[id]
		field := "fields." + id
		switch {
		case hadOld && hasNew:
			if !oldVal.Equal(newVal) {
				changes = append(changes, models.Change{
					Field: field, Kind: models.ChangeChanged, Old: oldVal, New: newVal,
				})
			}
		case hasNew:
			changes = append(changes, models.Change{Field: field, Kind: models.ChangeAdded, New: newVal})
		case hadOld:
			changes = append(changes, models.Change{Field: field, Kind: models.ChangeRemoved, Old: oldVal})
		}
	}
	return changes
}

// stepChanges aligns the two ordered step lists: by stable step id when
// present, by position for id-less entries. When nothing differs it
// returns nil; otherwise the full aligned sequence so callers can
// render the final order with removals in place.
func stepChanges(old, new []models.Step) []models.Change {
	match := make([]int, len(new)) // new index -> old index, -1 = added
	usedOld := make([]bool, len(old))

	byID := make(map[string]int, len(old))
	for j := range old {
		if old[j].ID != "" {
			byID[old[j].ID] = j
		}
	}
	for i := range new {
		match[i] = -1
		if new[i].ID != "" {
			if j, ok := byID[new[i].ID]; ok {
				match[i] = j
				usedOld[j] = true
			}
		}
	}
	// Positional fallback for entries without stable ids.
	for i := range new {
		if match[i] == -1 && new[i].ID == "" && i < len(old) && !usedOld[i] && old[i].ID == "" {
			match[i] = i
			usedOld[i] = true
		}
	}

	var seq []models.Change
	dirty := len(old) != len(new)
	oldPtr := 0

	flushRemoved := func(until int) {
		for k := oldPtr; k < until; k++ {
			if !usedOld[k] {
				step := old[k]
				seq = append(seq, models.Change{Field: "steps", Kind: models.ChangeRemoved, Old: &step})
				dirty = true
			}
		}
		if until > oldPtr {
			oldPtr = until
		}
	}

	for i := range new {
		j := match[i]
		if j < 0 {
			step := new[i]
			seq = append(seq, models.Change{Field: "steps", Kind: models.ChangeAdded, New: &step})
			dirty = true
			continue
		}
		flushRemoved(j)
		if oldPtr <= j {
			oldPtr = j + 1
		}
		oldStep, newStep := old[j], new[i]
		kind := models.ChangeUnchanged
		if !oldStep.Equal(newStep) {
			kind = models.ChangeChanged
			dirty = true
		}
		if j != i {
			dirty = true // reordered
		}
		seq = append(seq, models.Change{Field: "steps", Kind: kind, Old: &oldStep, New: &newStep})
	}
	flushRemoved(len(old))

	if !dirty {
		return nil
	}
	return seq
}

// contentEqual reports whether two version contents would produce an
// empty diff. The artifact store uses it to skip no-op versions.
func contentEqual(a, b *models.VersionContent) bool {
	return len(computeChanges(a, b)) == 0
}
