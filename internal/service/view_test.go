package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"quiver/internal/domain"
	"quiver/internal/domain/models"
	"quiver/internal/domain/services"
)

func TestViewTagBucketsWithAnyAndNone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tagged := e.mkCase(t, nil, "Tagged one")
	for i := 0; i < 4; i++ {
		e.mkCase(t, nil, fmt.Sprintf("Untagged %d", i))
	}
	tag, err := e.tags.CreateOrRestore(ctx, &services.TagRequest{ActorID: actor, Name: "smoke"})
	require.NoError(t, err)
	require.NoError(t, e.tags.Attach(ctx, &services.AttachTagRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		CaseID:    tagged.ID,
		TagID:     tag.ID,
	}))

	page, err := e.views.Query(ctx, &models.ViewQuery{
		ProjectID: e.project.ID,
		Dimension: models.Dimension{Kind: models.DimensionTag},
	})
	require.NoError(t, err)

	require.Len(t, page.Buckets, 3)
	require.Equal(t, models.BucketAny, page.Buckets[0].Key)
	require.Equal(t, "Any Tag", page.Buckets[0].Label)
	require.Equal(t, 1, page.Buckets[0].Count)
	require.Equal(t, models.BucketNone, page.Buckets[1].Key)
	require.Equal(t, "No Tags", page.Buckets[1].Label)
	require.Equal(t, 4, page.Buckets[1].Count)
	require.Equal(t, tag.ID, page.Buckets[2].Key)
	require.Equal(t, "smoke", page.Buckets[2].Label)
	require.Equal(t, 1, page.Buckets[2].Count)

	require.Equal(t, 5, page.All.Count)
	require.Equal(t, 5, page.TotalCount)
}

func TestViewSelectionFiltersCases(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tagged := e.mkCase(t, nil, "Has tag")
	e.mkCase(t, nil, "No tag")
	tag, err := e.tags.CreateOrRestore(ctx, &services.TagRequest{ActorID: actor, Name: "smoke"})
	require.NoError(t, err)
	require.NoError(t, e.tags.Attach(ctx, &services.AttachTagRequest{
		ActorID:   actor,
		ProjectID: e.project.ID,
		CaseID:    tagged.ID,
		TagID:     tag.ID,
	}))

	page, err := e.views.Query(ctx, &models.ViewQuery{
		ProjectID: e.project.ID,
		Dimension: models.Dimension{Kind: models.DimensionTag},
		Selected:  []string{models.BucketNone},
	})
	require.NoError(t, err)
	require.Len(t, page.Cases, 1)
	require.Equal(t, "No tag", page.Cases[0].Name)

	// With a selection, the All count on a multi-value dimension
	// reports how many cases match any selected bucket.
	require.Equal(t, 1, page.All.Count)
}

func TestViewPaginationClamps(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for i := 1; i <= 23; i++ {
		e.mkCase(t, nil, fmt.Sprintf("Case %02d", i))
	}

	q := &models.ViewQuery{
		ProjectID: e.project.ID,
		Dimension: models.Dimension{Kind: models.DimensionState},
		PageSize:  10,
		Page:      1,
	}
	page, err := e.views.Query(ctx, q)
	require.NoError(t, err)
	require.Equal(t, 23, page.TotalCount)
	require.Equal(t, 3, page.PageCount)
	require.Len(t, page.Cases, 10)
	require.True(t, page.ShowPager)

	q.Page = 3
	page, err = e.views.Query(ctx, q)
	require.NoError(t, err)
	require.Len(t, page.Cases, 3)

	// A page past the end clamps instead of erroring.
	q.Page = 9
	page, err = e.views.Query(ctx, q)
	require.NoError(t, err)
	require.Equal(t, 3, page.Page)
	require.Len(t, page.Cases, 3)
}

func TestViewSearchNarrowsAndHidesPager(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for i := 1; i <= 30; i++ {
		e.mkCase(t, nil, fmt.Sprintf("Checkout case %02d", i))
	}
	e.mkCase(t, nil, "Special snowflake")

	page, err := e.views.Query(ctx, &models.ViewQuery{
		ProjectID: e.project.ID,
		Dimension: models.Dimension{Kind: models.DimensionState},
		Search:    "SPECIAL",
		PageSize:  10,
		Page:      3, // stale page from before the search
	})
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalCount)
	require.Equal(t, 1, page.Page)
	require.False(t, page.ShowPager)
	require.Equal(t, "Special snowflake", page.Cases[0].Name)
}

func TestViewBetweenFilterValidatesBounds(t *testing.T) {
	e := newEnv(t)

	_, err := e.views.Query(context.Background(), &models.ViewQuery{
		ProjectID: e.project.ID,
		Dimension: models.Dimension{Kind: models.DimensionState},
		Filters: []models.Filter{
			{Field: "estimate", Op: models.OpBetween, Low: "10", High: "5"},
		},
	})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestViewBetweenFilterComparesNumerically(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, estimate := range []string{"5", "10", "50"} {
		_, err := e.cases.CreateCase(ctx, &services.CreateCaseRequest{
			ActorID:    actor,
			ProjectID:  e.project.ID,
			TemplateID: "steps",
			Name:       "Estimate " + estimate,
			Estimate:   estimate,
		})
		require.NoError(t, err)
	}

	page, err := e.views.Query(ctx, &models.ViewQuery{
		ProjectID: e.project.ID,
		Dimension: models.Dimension{Kind: models.DimensionState},
		Filters: []models.Filter{
			{Field: "estimate", Op: models.OpBetween, Low: "5", High: "10"},
		},
	})
	require.NoError(t, err)

	// Lexically "50" would sit between "5" and "10"s neighbors; the
	// numeric compare must keep it out.
	require.Equal(t, 2, page.TotalCount)
	for _, c := range page.Cases {
		require.NotEqual(t, "Estimate 50", c.Name)
	}
}

func TestViewFolderScopeIncludesSubtree(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	top := e.mkFolder(t, nil, "Checkout")
	sub := e.mkFolder(t, &top.ID, "Payments")
	other := e.mkFolder(t, nil, "Accounts")

	e.mkCase(t, &top.ID, "In top")
	e.mkCase(t, &sub.ID, "In subtree")
	e.mkCase(t, &other.ID, "Elsewhere")
	e.mkCase(t, nil, "At root")

	page, err := e.views.Query(ctx, &models.ViewQuery{
		ProjectID: e.project.ID,
		Dimension: models.Dimension{Kind: models.DimensionState},
		FolderID:  &top.ID,
	})
	require.NoError(t, err)
	require.Equal(t, 2, page.TotalCount)
}

func TestViewFolderDimensionBucketsByFolder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	folder := e.mkFolder(t, nil, "Suite")
	e.mkCase(t, &folder.ID, "Contained")
	e.mkCase(t, nil, "Loose")

	page, err := e.views.Query(ctx, &models.ViewQuery{
		ProjectID: e.project.ID,
		Dimension: models.Dimension{Kind: models.DimensionFolder},
	})
	require.NoError(t, err)

	labels := make(map[string]int)
	for _, b := range page.Buckets {
		labels[b.Label] = b.Count
	}
	require.Equal(t, 1, labels["Suite"])
	require.Equal(t, 1, labels["Root"])
}

func TestViewHidesDimensionsWithoutData(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.mkCase(t, nil, "Plain case")

	has, err := e.views.HasData(ctx, e.project.ID, models.Dimension{Kind: models.DimensionIssue})
	require.NoError(t, err)
	require.False(t, has)

	has, err = e.views.HasData(ctx, e.project.ID, models.Dimension{Kind: models.DimensionTemplate})
	require.NoError(t, err)
	require.True(t, has)

	dims, err := e.views.Dimensions(ctx, e.project.ID)
	require.NoError(t, err)
	for _, d := range dims {
		require.NotEqual(t, models.DimensionIssue, d.Kind)
		require.NotEqual(t, models.DimensionTag, d.Kind)
	}
}

func TestViewSortByName(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.mkCase(t, nil, "bravo")
	e.mkCase(t, nil, "Alpha")
	e.mkCase(t, nil, "charlie")

	page, err := e.views.Query(ctx, &models.ViewQuery{
		ProjectID: e.project.ID,
		Dimension: models.Dimension{Kind: models.DimensionState},
		Sort:      models.Sort{Field: "name"},
	})
	require.NoError(t, err)
	require.Equal(t, "Alpha", page.Cases[0].Name)
	require.Equal(t, "bravo", page.Cases[1].Name)
	require.Equal(t, "charlie", page.Cases[2].Name)
}

func TestViewSingleValueDimensionKeepsAllEqualToBucketSum(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.mkCase(t, nil, "Active one")
	d := e.mkCase(t, nil, "Draft one")
	e.mkCase(t, nil, "Stateless")

	setState := func(id, state string) {
		_, err := e.cases.UpdateCase(ctx, &services.UpdateCaseRequest{
			ActorID:   actor,
			ProjectID: e.project.ID,
			CaseID:    id,
			Patch:     services.CasePatch{State: strPtr(state)},
		})
		require.NoError(t, err)
	}
	setState(a.ID, "active")
	setState(d.ID, "draft")

	page, err := e.views.Query(ctx, &models.ViewQuery{
		ProjectID: e.project.ID,
		Dimension: models.Dimension{Kind: models.DimensionState},
	})
	require.NoError(t, err)

	sum := 0
	for _, b := range page.Buckets {
		sum += b.Count
	}
	require.Equal(t, page.All.Count, sum)
	require.Equal(t, 3, page.All.Count)

	// The valueless case lands in a selectable None bucket.
	require.Equal(t, models.BucketNone, page.Buckets[0].Key)
	require.Equal(t, 1, page.Buckets[0].Count)

	sel, err := e.views.Query(ctx, &models.ViewQuery{
		ProjectID: e.project.ID,
		Dimension: models.Dimension{Kind: models.DimensionState},
		Selected:  []string{models.BucketNone},
	})
	require.NoError(t, err)
	require.Equal(t, 1, sel.TotalCount)
	require.Equal(t, "Stateless", sel.Cases[0].Name)
}
