package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cleberrangel/linear-pert-api/internal/cache"
	"github.com/cleberrangel/linear-pert-api/internal/model"
	"github.com/cleberrangel/linear-pert-api/internal/pert"
	"github.com/cleberrangel/linear-pert-api/internal/repository"
)

type fakeLinear struct {
	issues     map[string][]model.Issue
	teamIssues map[string][]model.Issue
	projects   []model.Project
	calls     int32
	err       error
	failAfter int32
}

func (f *fakeLinear) Teams(ctx context.Context, accessToken string) ([]model.Team, error) {
	return []model.Team{{ID: "t1", Name: "Engineering", Key: "ENG"}}, nil
}

func (f *fakeLinear) Projects(ctx context.Context, accessToken, teamID string) ([]model.Project, error) {
	if f.projects != nil {
		return f.projects, nil
	}
	return []model.Project{{ID: "p1", Name: "Alpha"}}, nil
}

func (f *fakeLinear) TeamIssues(ctx context.Context, accessToken, teamID string) ([]model.Issue, error) {
	issues, ok := f.teamIssues[teamID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return issues, nil
}

func (f *fakeLinear) Organization(ctx context.Context, accessToken string) (*model.Workspace, error) {
	return &model.Workspace{ID: "o1", Name: "Acme", URLKey: "acme"}, nil
}

func (f *fakeLinear) ProjectIssues(ctx context.Context, accessToken, projectID string) ([]model.Issue, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.failAfter > 0 && n > f.failAfter {
		return nil, model.ErrTimeout
	}
	if f.err != nil {
		return nil, f.err
	}
	issues, ok := f.issues[projectID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return issues, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	updates []model.ProjectUpdate
}

func (p *fakePublisher) PublishProject(update model.ProjectUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, update)
}

func newTestProjectService(t *testing.T, linear *fakeLinear) (*ProjectService, *repository.MemoryEstimateStore, *fakePublisher) {
	t.Helper()
	store := repository.NewMemoryEstimateStore()
	pub := &fakePublisher{}
	issues := cache.New[[]model.Issue](time.Minute)
	t.Cleanup(issues.Stop)

	return NewProjectService(linear, store, NewEstimateService(), issues, pub), store, pub
}

func projectIssues() map[string][]model.Issue {
	return map[string][]model.Issue{
		"p1": {
			{ID: "i1", Identifier: "ENG-1", Title: "Valid"},
			{ID: "i2", Identifier: "ENG-2", Title: "Invalid"},
			{ID: "i3", Identifier: "ENG-3", Title: "Not estimated"},
			{ID: "i4", Identifier: "ENG-4", Title: "Valid too"},
		},
	}
}

func TestEstimateServiceCalculateIsUngated(t *testing.T) {
	svc := NewEstimateService()

	resp := svc.Calculate(context.Background(), pert.NewEstimate(8, 4, 2))
	if resp.Validation.Valid {
		t.Error("inverted estimate should be invalid")
	}
	if resp.Result.StandardDeviation != -1 {
		t.Errorf("StandardDeviation = %v, want -1", resp.Result.StandardDeviation)
	}

	agg := svc.Aggregate(context.Background(), []pert.Estimate{pert.NewEstimate(2, 4, 8), pert.NewEstimate(0, 1, 2)})
	if len(agg.Validations) != 2 || agg.Validations[0].Valid == agg.Validations[1].Valid {
		t.Errorf("unexpected validations %+v", agg.Validations)
	}
	want := pert.Aggregate([]pert.Estimate{pert.NewEstimate(2, 4, 8), pert.NewEstimate(0, 1, 2)})
	if agg.Result != want {
		t.Errorf("Aggregate() result = %+v, want %+v", agg.Result, want)
	}
}

func TestProjectPertAggregatesOnlyValidTasks(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestProjectService(t, &fakeLinear{issues: projectIssues()})

	store.Upsert(ctx, model.StoredEstimate{IssueID: "i1", ProjectID: "p1", Estimate: pert.NewEstimate(2, 4, 8)})
	store.Upsert(ctx, model.StoredEstimate{IssueID: "i2", ProjectID: "p1", Estimate: pert.NewEstimate(5, 2, 3)})
	store.Upsert(ctx, model.StoredEstimate{IssueID: "i4", ProjectID: "p1", Estimate: pert.NewEstimate(1, 2, 3)})

	view, err := svc.ProjectPert(ctx, "tok", "p1")
	if err != nil {
		t.Fatalf("ProjectPert() error = %v", err)
	}

	if view.TotalTasks != 4 || view.EstimatedTasks != 3 || view.InvalidTasks != 1 {
		t.Errorf("counts = %d/%d/%d, want 4/3/1", view.TotalTasks, view.EstimatedTasks, view.InvalidTasks)
	}

	if view.Tasks[1].Validation == nil || view.Tasks[1].Validation.Valid || view.Tasks[1].Result != nil {
		t.Errorf("invalid task view = %+v", view.Tasks[1])
	}
	if view.Tasks[2].Estimate != nil || view.Tasks[2].Validation != nil {
		t.Errorf("unestimated task view = %+v", view.Tasks[2])
	}

	want := pert.Aggregate([]pert.Estimate{pert.NewEstimate(2, 4, 8), pert.NewEstimate(1, 2, 3)})
	if view.Total != want {
		t.Errorf("Total = %+v, want %+v", view.Total, want)
	}
	if math.Abs(view.Total.ExpectedTime-(13.0/3.0+2.0)) > 1e-9 {
		t.Errorf("ExpectedTime = %v", view.Total.ExpectedTime)
	}
}

func TestProjectPertCachesIssues(t *testing.T) {
	linear := &fakeLinear{issues: projectIssues()}
	svc, _, _ := newTestProjectService(t, linear)

	for i := 0; i < 3; i++ {
		if _, err := svc.ProjectPert(context.Background(), "tok", "p1"); err != nil {
			t.Fatalf("ProjectPert() error = %v", err)
		}
	}
	if linear.calls != 1 {
		t.Errorf("ProjectIssues called %d times, want 1", linear.calls)
	}

	// Outro token não compartilha cache
	svc.ProjectPert(context.Background(), "other", "p1")
	if linear.calls != 2 {
		t.Errorf("ProjectIssues called %d times, want 2", linear.calls)
	}

	// Refresh descarta o cache do projeto para ambos os tokens
	svc.RefreshIssues("p1")
	svc.ProjectPert(context.Background(), "tok", "p1")
	svc.ProjectPert(context.Background(), "other", "p1")
	if linear.calls != 4 {
		t.Errorf("ProjectIssues called %d times after refresh, want 4", linear.calls)
	}
}

func TestProjectPertPropagatesLinearErrors(t *testing.T) {
	svc, _, _ := newTestProjectService(t, &fakeLinear{err: model.ErrUnauthorized})

	_, err := svc.ProjectPert(context.Background(), "tok", "p1")
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

func TestDashboardSumsProjects(t *testing.T) {
	ctx := context.Background()
	issues := projectIssues()
	issues["p2"] = []model.Issue{{ID: "i5", Identifier: "OPS-1", Title: "Deploy"}}
	issues["p3"] = nil

	linear := &fakeLinear{
		issues: issues,
		projects: []model.Project{
			{ID: "p1", Name: "Alpha", State: "started"},
			{ID: "p2", Name: "Beta", State: "canceled"},
			{ID: "p3", Name: "Gamma", State: "planned"},
		},
	}
	svc, store, _ := newTestProjectService(t, linear)

	store.Upsert(ctx, model.StoredEstimate{IssueID: "i1", ProjectID: "p1", Estimate: pert.NewEstimate(2, 4, 8)})
	store.Upsert(ctx, model.StoredEstimate{IssueID: "i2", ProjectID: "p1", Estimate: pert.NewEstimate(5, 2, 3)})
	store.Upsert(ctx, model.StoredEstimate{IssueID: "i4", ProjectID: "p1", Estimate: pert.NewEstimate(1, 2, 3)})
	store.Upsert(ctx, model.StoredEstimate{IssueID: "i5", ProjectID: "p2", Estimate: pert.NewEstimate(3, 6, 9)})

	d, err := svc.Dashboard(ctx, "tok")
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}

	if d.Stats.TotalProjects != 3 || d.Stats.ActiveProjects != 2 {
		t.Errorf("projects = %d/%d, want 3/2", d.Stats.TotalProjects, d.Stats.ActiveProjects)
	}
	if d.Stats.TotalTasks != 5 || d.Stats.EstimatedTasks != 4 {
		t.Errorf("tasks = %d/%d, want 5/4", d.Stats.TotalTasks, d.Stats.EstimatedTasks)
	}

	want := pert.Aggregate([]pert.Estimate{
		pert.NewEstimate(2, 4, 8),
		pert.NewEstimate(1, 2, 3),
		pert.NewEstimate(3, 6, 9),
	})
	if d.Stats.Total != want {
		t.Errorf("Stats.Total = %+v, want %+v", d.Stats.Total, want)
	}

	if len(d.Projects) != 3 || d.Projects[0].ID != "p1" || d.Projects[1].ID != "p2" {
		t.Fatalf("projects = %+v", d.Projects)
	}
	if d.Projects[0].InvalidTasks != 1 || d.Projects[0].EstimatedTasks != 3 {
		t.Errorf("p1 summary = %+v", d.Projects[0])
	}
	if d.Projects[1].Total != pert.Aggregate([]pert.Estimate{pert.NewEstimate(3, 6, 9)}) {
		t.Errorf("p2 total = %+v", d.Projects[1].Total)
	}
	if d.Projects[2].TotalTasks != 0 || d.Projects[2].Total.ExpectedTime != 0 {
		t.Errorf("empty project summary = %+v", d.Projects[2])
	}
}

func TestDashboardFailsWhenAProjectFails(t *testing.T) {
	linear := &fakeLinear{
		issues:   projectIssues(),
		projects: []model.Project{{ID: "p1"}, {ID: "gone"}},
	}
	svc, _, _ := newTestProjectService(t, linear)

	_, err := svc.Dashboard(context.Background(), "tok")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestTeamIssuesCarryEstimates(t *testing.T) {
	ctx := context.Background()
	linear := &fakeLinear{teamIssues: map[string][]model.Issue{
		"t1": {
			{ID: "i1", Identifier: "ENG-1"},
			{ID: "i2", Identifier: "ENG-2"},
			{ID: "i3", Identifier: "ENG-3"},
		},
	}}
	svc, store, _ := newTestProjectService(t, linear)

	store.Upsert(ctx, model.StoredEstimate{IssueID: "i1", ProjectID: "p1", Estimate: pert.NewEstimate(2, 4, 8)})
	store.Upsert(ctx, model.StoredEstimate{IssueID: "i2", ProjectID: "p1", Estimate: pert.NewEstimate(5, 2, 3)})

	tasks, err := svc.TeamIssues(ctx, "tok", "t1")
	if err != nil {
		t.Fatalf("TeamIssues() error = %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("len(tasks) = %d, want 3", len(tasks))
	}

	if tasks[0].Result == nil || tasks[0].Result.ExpectedTime != pert.Calculate(pert.NewEstimate(2, 4, 8)).ExpectedTime {
		t.Errorf("estimated task = %+v", tasks[0])
	}
	if tasks[1].Validation == nil || tasks[1].Validation.Valid || tasks[1].Result != nil {
		t.Errorf("invalid task = %+v", tasks[1])
	}
	if tasks[2].Estimate != nil {
		t.Errorf("unestimated task = %+v", tasks[2])
	}

	if _, err := svc.TeamIssues(ctx, "tok", "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("TeamIssues(missing) error = %v, want ErrNotFound", err)
	}
}

func TestWorkspace(t *testing.T) {
	svc, _, _ := newTestProjectService(t, &fakeLinear{})

	ws, err := svc.Workspace(context.Background(), "tok")
	if err != nil || ws.URLKey != "acme" {
		t.Errorf("Workspace() = %+v, %v", ws, err)
	}
}

func TestLookupEstimatesChunks(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestProjectService(t, &fakeLinear{})

	issues := make([]model.Issue, 250)
	for i := range issues {
		issues[i] = model.Issue{ID: fmt.Sprintf("i%d", i)}
		if i%2 == 0 {
			store.Upsert(ctx, model.StoredEstimate{IssueID: issues[i].ID, ProjectID: "p", Estimate: pert.NewEstimate(1, 2, 3)})
		}
	}

	found, err := svc.lookupEstimates(ctx, issues)
	if err != nil {
		t.Fatalf("lookupEstimates() error = %v", err)
	}
	if len(found) != 125 {
		t.Errorf("found %d estimates, want 125", len(found))
	}
}

func TestSaveEstimateRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newTestProjectService(t, &fakeLinear{issues: projectIssues()})

	_, err := svc.SaveEstimate(ctx, "tok", model.StoredEstimate{
		IssueID: "i1", ProjectID: "p1", Estimate: pert.NewEstimate(5, 2, 3),
	})

	var verr *ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, ErrInvalidEstimate) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if len(verr.Outcome.Errors) != 2 {
		t.Errorf("errors = %v, want 2 messages", verr.Outcome.Errors)
	}

	if _, err := store.Get(ctx, "i1"); !errors.Is(err, repository.ErrEstimateNotFound) {
		t.Error("invalid estimate must not be stored")
	}
	if len(pub.updates) != 0 {
		t.Error("invalid estimate must not be published")
	}
}

func TestSaveAndDeleteEstimatePublish(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newTestProjectService(t, &fakeLinear{issues: projectIssues()})

	saved, err := svc.SaveEstimate(ctx, "tok", model.StoredEstimate{
		IssueID: "i1", ProjectID: "p1", Estimate: pert.NewEstimate(2, 4, 8), UpdatedBy: "user-1",
	})
	if err != nil {
		t.Fatalf("SaveEstimate() error = %v", err)
	}
	if saved.UpdatedAt.IsZero() {
		t.Error("saved estimate should carry timestamps")
	}

	if len(pub.updates) != 1 {
		t.Fatalf("published %d updates, want 1", len(pub.updates))
	}
	update := pub.updates[0]
	if update.Action != model.ActionEstimateSaved || update.IssueID != "i1" || update.ProjectID != "p1" || update.UpdatedBy != "user-1" {
		t.Errorf("unexpected update %+v", update)
	}

	if err := svc.DeleteEstimate(ctx, "tok", "i1", "user-1"); err != nil {
		t.Fatalf("DeleteEstimate() error = %v", err)
	}
	if _, err := store.Get(ctx, "i1"); !errors.Is(err, repository.ErrEstimateNotFound) {
		t.Error("estimate should be deleted")
	}
	if len(pub.updates) != 2 || pub.updates[1].Action != model.ActionEstimateDeleted || pub.updates[1].IssueID != "i1" {
		t.Errorf("unexpected delete update %+v", pub.updates)
	}

	if err := svc.DeleteEstimate(ctx, "tok", "i1", "user-1"); !errors.Is(err, repository.ErrEstimateNotFound) {
		t.Errorf("DeleteEstimate(missing) error = %v", err)
	}
}

func TestSaveEstimateRequiresIssueInProject(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newTestProjectService(t, &fakeLinear{issues: projectIssues()})

	_, err := svc.SaveEstimate(ctx, "tok", model.StoredEstimate{
		IssueID: "x1", ProjectID: "p1", Estimate: pert.NewEstimate(1, 2, 3),
	})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("SaveEstimate(foreign issue) error = %v, want ErrNotFound", err)
	}

	_, err = svc.SaveEstimate(ctx, "tok", model.StoredEstimate{
		IssueID: "i1", ProjectID: "unknown", Estimate: pert.NewEstimate(1, 2, 3),
	})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("SaveEstimate(unknown project) error = %v, want ErrNotFound", err)
	}

	if _, err := store.Get(ctx, "x1"); !errors.Is(err, repository.ErrEstimateNotFound) {
		t.Error("rejected estimate must not be stored")
	}
	if len(pub.updates) != 0 {
		t.Errorf("rejected estimate must not be published: %+v", pub.updates)
	}
}

func TestPublishedUpdateCarriesNoProjectView(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryEstimateStore()
	pub := &fakePublisher{}
	// Só a checagem de pertencimento pode chamar o Linear
	linear := &fakeLinear{issues: projectIssues(), failAfter: 1}
	svc := NewProjectService(linear, store, NewEstimateService(), nil, pub)

	if _, err := svc.SaveEstimate(ctx, "saver-token", model.StoredEstimate{
		IssueID: "i1", ProjectID: "p1", Estimate: pert.NewEstimate(1, 2, 3),
	}); err != nil {
		t.Fatalf("SaveEstimate() error = %v", err)
	}

	if linear.calls != 1 {
		t.Errorf("Linear called %d times, publish must not rebuild the view", linear.calls)
	}
	if len(pub.updates) != 1 {
		t.Fatalf("published %d updates, want 1", len(pub.updates))
	}

	raw, err := json.Marshal(pub.updates[0])
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatal(err)
	}
	if _, ok := fields["project"]; ok {
		t.Errorf("update must not carry the saver's project view: %s", raw)
	}
	if fields["issue_id"] != "i1" || fields["action"] != model.ActionEstimateSaved {
		t.Errorf("unexpected update %s", raw)
	}
}
