// ABOUTME: Tests for the demo walk generator and loader.

package seed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/2389/sitewalk/internal/config"
	"github.com/2389/sitewalk/internal/llm"
	"github.com/2389/sitewalk/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestApply_StaticWalk(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	walk := NewGenerator(config.OpenAIConfig{}, zerolog.Nop()).Generate(ctx)
	counts, err := Apply(ctx, st, walk)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if counts.AccessPoints != 6 || counts.Cameras != 5 || counts.Elevators != 3 || counts.Intercoms != 2 {
		t.Errorf("counts = %+v", counts)
	}
	if counts.Total() != 16 {
		t.Errorf("Total() = %d, want 16", counts.Total())
	}

	p, err := st.GetProject(ctx, counts.ProjectID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if p.Name != "Harbor Point Tower" || p.Status != "walk-scheduled" {
		t.Errorf("project = %+v", p)
	}
	cams, _ := st.ListCameras(ctx, p.ID)
	if cams[4].Resolution != nil {
		t.Errorf("camera without a resolution stored %v", *cams[4].Resolution)
	}

	// Seeding twice makes a second project rather than failing.
	if _, err := Apply(ctx, st, StaticWalk()); err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	projects, _ := st.ListProjects(ctx, "")
	if len(projects) != 2 {
		t.Errorf("projects = %d, want 2", len(projects))
	}
}

func fakeGenerator(t *testing.T, walk any) *Generator {
	t.Helper()
	content, _ := json.Marshal(walk)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": "chatcmpl-1",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": string(content)}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return &Generator{ai: llm.NewWithConfig(cfg, "gpt-5-mini"), logger: zerolog.Nop()}
}

func TestGenerate_AIWalkIsSanitized(t *testing.T) {
	g := fakeGenerator(t, map[string]any{
		"project": map[string]any{"name": "Riverside Clinic", "client": "Riverside Health", "status": "won"},
		"access_points": []map[string]any{
			{"location": "Pharmacy", "reader_type": "smart", "lock_type": "padlock"},
		},
		"cameras": []map[string]any{
			{"location": "Waiting Room", "camera_type": "dome", "environment": "underwater"},
		},
	})

	walk := g.Generate(context.Background())
	if walk.Project.Name != "Riverside Clinic" || walk.Project.Status != "" {
		t.Errorf("project = %+v", walk.Project)
	}
	door := walk.AccessPoints[0]
	if door.ReaderType != "smart" || door.LockType != "" {
		t.Errorf("door = %+v", door)
	}
	if walk.Cameras[0].Environment != "" {
		t.Errorf("camera environment = %q, want cleared", walk.Cameras[0].Environment)
	}
}

func TestGenerate_IncompleteAIWalkFallsBack(t *testing.T) {
	g := fakeGenerator(t, map[string]any{"project": map[string]any{"name": "Empty"}})
	if walk := g.Generate(context.Background()); walk.Project.Name != "Harbor Point Tower" {
		t.Errorf("expected static fallback, got %q", walk.Project.Name)
	}
}
