// ABOUTME: Demo site walk generator for seeding a fresh database.
// ABOUTME: Uses OpenAI for a varied walk when configured, otherwise the static Harbor Point Tower walk.

package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/2389/sitewalk/internal/config"
	"github.com/2389/sitewalk/internal/equipment"
	"github.com/2389/sitewalk/internal/llm"
	"github.com/2389/sitewalk/internal/store"
	"github.com/2389/sitewalk/internal/table"
)

// Walk is one project with its equipment, ready to insert.
type Walk struct {
	Project      store.Project       `json:"project"`
	AccessPoints []store.AccessPoint `json:"access_points"`
	Cameras      []store.Camera      `json:"cameras"`
	Elevators    []store.Elevator    `json:"elevators"`
	Intercoms    []store.Intercom    `json:"intercoms"`
}

// Counts reports what Apply inserted.
type Counts struct {
	ProjectID    int64
	AccessPoints int
	Cameras      int
	Elevators    int
	Intercoms    int
}

func (c Counts) Total() int { return c.AccessPoints + c.Cameras + c.Elevators + c.Intercoms }

// Generator creates demo walks using OpenAI or falls back to static data.
type Generator struct {
	ai     *llm.Client
	logger zerolog.Logger
}

func NewGenerator(cfg config.OpenAIConfig, logger zerolog.Logger) *Generator {
	g := &Generator{ai: llm.New(cfg), logger: logger}
	if g.ai != nil {
		logger.Info().Str("model", cfg.Model).Msg("OpenAI API key found, using AI-generated walk")
	} else {
		logger.Info().Msg("no OpenAI API key, using static demo walk")
	}
	return g
}

// Generate returns a demo walk. AI failures fall back to the static walk.
func (g *Generator) Generate(ctx context.Context) *Walk {
	if g.ai == nil {
		return StaticWalk()
	}
	walk, err := g.generateWalk(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Msg("AI generation failed, falling back to static walk")
		return StaticWalk()
	}
	return walk
}

func (g *Generator) generateWalk(ctx context.Context) (*Walk, error) {
	prompt := fmt.Sprintf(`Generate a realistic site walk for a commercial building security upgrade.
Return a JSON object with:
- project: name, client, address, walk_date (YYYY-MM-DD)
- access_points: 6-10 card-access doors with location, reader_type (%s), lock_type (%s), monitoring (%s), placement (%s), takeover (%s), notes
- cameras: 4-8 cameras with location, camera_type (%s), mounting (%s), resolution (megapixels as a number), environment (%s), notes
- elevators: 1-3 cars with location, bank, elevator_type (%s), floors_served (integer), notes
- intercoms: 1-3 stations with location, intercom_type (%s), notes
Use only the listed values for the typed fields. Notes are short field observations or empty.`,
		values(equipment.ReaderTypes), values(equipment.LockTypes), values(equipment.MonitoringTypes),
		values(equipment.Placements), values(equipment.TakeoverTypes), values(equipment.CameraTypes),
		values(equipment.Mountings), values(equipment.Environments), values(equipment.ElevatorTypes),
		values(equipment.IntercomTypes))

	walk, err := llm.JSON[Walk](ctx, g.ai, "You are a data generator for a physical security integrator.", prompt)
	if err != nil {
		return nil, err
	}
	if walk.Project.Name == "" || len(walk.AccessPoints) == 0 {
		return nil, fmt.Errorf("incomplete walk from OpenAI")
	}
	walk.sanitize()
	return &walk, nil
}

// sanitize clears typed fields the model filled with values outside the
// vocabularies, so the schedule editors can still open them.
func (w *Walk) sanitize() {
	w.Project.ID, w.Project.Status = 0, ""
	for i := range w.AccessPoints {
		a := &w.AccessPoints[i]
		a.ReaderType = known(equipment.ReaderTypes, a.ReaderType)
		a.LockType = known(equipment.LockTypes, a.LockType)
		a.Monitoring = known(equipment.MonitoringTypes, a.Monitoring)
		a.Placement = known(equipment.Placements, a.Placement)
		a.Takeover = known(equipment.TakeoverTypes, a.Takeover)
	}
	for i := range w.Cameras {
		c := &w.Cameras[i]
		c.CameraType = known(equipment.CameraTypes, c.CameraType)
		c.Mounting = known(equipment.Mountings, c.Mounting)
		c.Environment = known(equipment.Environments, c.Environment)
	}
	for i := range w.Elevators {
		w.Elevators[i].ElevatorType = known(equipment.ElevatorTypes, w.Elevators[i].ElevatorType)
	}
	for i := range w.Intercoms {
		w.Intercoms[i].IntercomType = known(equipment.IntercomTypes, w.Intercoms[i].IntercomType)
	}
}

func values(opts []table.Option) string {
	vs := make([]string, len(opts))
	for i, o := range opts {
		vs[i] = o.Value
	}
	return strings.Join(vs, ", ")
}

func known(opts []table.Option, v string) string {
	for _, o := range opts {
		if o.Value == v {
			return v
		}
	}
	return ""
}

// Apply inserts the walk as a new project.
func Apply(ctx context.Context, st *store.Store, w *Walk) (Counts, error) {
	p := w.Project
	if err := st.CreateProject(ctx, &p); err != nil {
		return Counts{}, fmt.Errorf("creating project: %w", err)
	}
	counts := Counts{ProjectID: p.ID}

	for _, a := range w.AccessPoints {
		a.ProjectID = p.ID
		if err := st.CreateAccessPoint(ctx, &a); err != nil {
			return counts, fmt.Errorf("creating access point %q: %w", a.Location, err)
		}
		counts.AccessPoints++
	}
	for _, c := range w.Cameras {
		c.ProjectID = p.ID
		if err := st.CreateCamera(ctx, &c); err != nil {
			return counts, fmt.Errorf("creating camera %q: %w", c.Location, err)
		}
		counts.Cameras++
	}
	for _, e := range w.Elevators {
		e.ProjectID = p.ID
		if err := st.CreateElevator(ctx, &e); err != nil {
			return counts, fmt.Errorf("creating elevator %q: %w", e.Location, err)
		}
		counts.Elevators++
	}
	for _, i := range w.Intercoms {
		i.ProjectID = p.ID
		if err := st.CreateIntercom(ctx, &i); err != nil {
			return counts, fmt.Errorf("creating intercom %q: %w", i.Location, err)
		}
		counts.Intercoms++
	}
	return counts, nil
}
