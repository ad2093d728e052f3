// ABOUTME: Column sets and option vocabularies for the four equipment schedules.
// ABOUTME: Column ids match the store's updatable field names so commits map straight to updates.

package equipment

import (
	"strconv"
	"time"

	"github.com/2389/sitewalk/internal/store"
	"github.com/2389/sitewalk/internal/table"
)

var (
	ReaderTypes = []table.Option{
		{Label: "Proximity", Value: "prox"},
		{Label: "Smart Card", Value: "smart"},
		{Label: "Keypad", Value: "keypad"},
		{Label: "Mobile Credential", Value: "mobile"},
		{Label: "Biometric", Value: "biometric"},
		{Label: "None", Value: "none"},
	}
	LockTypes = []table.Option{
		{Label: "Maglock", Value: "maglock"},
		{Label: "Electric Strike", Value: "strike"},
		{Label: "Electrified Mortise", Value: "mortise"},
		{Label: "Electrified Exit Device", Value: "exit-device"},
		{Label: "None", Value: "none"},
	}
	MonitoringTypes = []table.Option{
		{Label: "Door Position", Value: "dps"},
		{Label: "Door Position + REX", Value: "dps-rex"},
		{Label: "None", Value: "none"},
	}
	Placements = []table.Option{
		{Label: "Interior", Value: "interior"},
		{Label: "Perimeter", Value: "perimeter"},
	}
	TakeoverTypes = []table.Option{
		{Label: "New Install", Value: "new"},
		{Label: "Takeover", Value: "takeover"},
		{Label: "Replace", Value: "replace"},
	}
	CameraTypes = []table.Option{
		{Label: "Dome", Value: "dome"},
		{Label: "Bullet", Value: "bullet"},
		{Label: "PTZ", Value: "ptz"},
		{Label: "Fisheye", Value: "fisheye"},
		{Label: "Multi-Sensor", Value: "multisensor"},
	}
	Mountings = []table.Option{
		{Label: "Ceiling", Value: "ceiling"},
		{Label: "Wall", Value: "wall"},
		{Label: "Pendant", Value: "pendant"},
		{Label: "Corner", Value: "corner"},
		{Label: "Pole", Value: "pole"},
	}
	Environments = []table.Option{
		{Label: "Indoor", Value: "indoor"},
		{Label: "Outdoor", Value: "outdoor"},
	}
	ElevatorTypes = []table.Option{
		{Label: "Traction", Value: "traction"},
		{Label: "Hydraulic", Value: "hydraulic"},
		{Label: "Freight", Value: "freight"},
	}
	IntercomTypes = []table.Option{
		{Label: "Audio", Value: "audio"},
		{Label: "Video", Value: "video"},
		{Label: "Telephone Entry", Value: "telephone-entry"},
	}
)

const updatedLayout = "Jan 2 15:04"

func idColumn[T any](id func(T) int64) table.Column[T] {
	return table.NewReadOnly("id", "#", func(row T) table.Value {
		return table.Int(id(row))
	}, table.WithClassName("col-id"))
}

func updatedColumn[T any](at func(T) time.Time) table.Column[T] {
	return table.NewAction("updated", "Updated",
		func(row table.Row[T]) string { return at(row.Data).Local().Format(updatedLayout) },
		table.WithComparator(func(a, b T) int { return at(a).Compare(at(b)) }),
		table.WithClassName("col-updated"))
}

func notesColumn[T any](get func(T) string) table.Column[T] {
	return table.NewText("notes", "Notes", get, table.WithClassName("col-notes"))
}

func AccessPoints() *Kind {
	return define(model[store.AccessPoint]{
		slug:     "access-points",
		title:    "Door Schedule",
		singular: "Access Point",
		table:    "access_points",
		search:   "location",
		columns: func() []table.Column[store.AccessPoint] {
			return []table.Column[store.AccessPoint]{
				idColumn(func(a store.AccessPoint) int64 { return a.ID }),
				table.NewText("location", "Location", func(a store.AccessPoint) string { return a.Location }),
				table.NewSelect("reader_type", "Reader", func(a store.AccessPoint) string { return a.ReaderType }, ReaderTypes),
				table.NewSelect("lock_type", "Lock", func(a store.AccessPoint) string { return a.LockType }, LockTypes),
				table.NewSelect("monitoring", "Monitoring", func(a store.AccessPoint) string { return a.Monitoring }, MonitoringTypes),
				table.NewSelect("placement", "Interior/Perimeter", func(a store.AccessPoint) string { return a.Placement }, Placements),
				table.NewSelect("takeover", "Takeover", func(a store.AccessPoint) string { return a.Takeover }, TakeoverTypes),
				notesColumn(func(a store.AccessPoint) string { return a.Notes }),
				updatedColumn(func(a store.AccessPoint) time.Time { return a.UpdatedAt }),
			}
		},
		id:      func(a store.AccessPoint) int64 { return a.ID },
		project: func(a store.AccessPoint) int64 { return a.ProjectID },
		place:   func(a *store.AccessPoint, projectID int64) { a.ProjectID = projectID },
		list:    (*store.Store).ListAccessPoints,
		get:     (*store.Store).GetAccessPoint,
		create:  (*store.Store).CreateAccessPoint,
		update:  (*store.Store).UpdateAccessPoint,
		remove:  (*store.Store).DeleteAccessPoint,
	})
}

func Cameras() *Kind {
	return define(model[store.Camera]{
		slug:     "cameras",
		title:    "Camera Schedule",
		singular: "Camera",
		table:    "cameras",
		search:   "location",
		columns: func() []table.Column[store.Camera] {
			return []table.Column[store.Camera]{
				idColumn(func(c store.Camera) int64 { return c.ID }),
				table.NewText("location", "Location", func(c store.Camera) string { return c.Location }),
				table.NewSelect("camera_type", "Type", func(c store.Camera) string { return c.CameraType }, CameraTypes),
				table.NewSelect("mounting", "Mounting", func(c store.Camera) string { return c.Mounting }, Mountings),
				table.NewOptionalNumber("resolution", "Resolution", func(c store.Camera) *float64 { return c.Resolution },
					table.WithFormatter(func(v table.Value) string {
						return strconv.FormatFloat(v.Num(), 'f', -1, 64) + " MP"
					})),
				table.NewSelect("environment", "Indoor/Outdoor", func(c store.Camera) string { return c.Environment }, Environments),
				notesColumn(func(c store.Camera) string { return c.Notes }),
				updatedColumn(func(c store.Camera) time.Time { return c.UpdatedAt }),
			}
		},
		id:      func(c store.Camera) int64 { return c.ID },
		project: func(c store.Camera) int64 { return c.ProjectID },
		place:   func(c *store.Camera, projectID int64) { c.ProjectID = projectID },
		list:    (*store.Store).ListCameras,
		get:     (*store.Store).GetCamera,
		create:  (*store.Store).CreateCamera,
		update:  (*store.Store).UpdateCamera,
		remove:  (*store.Store).DeleteCamera,
	})
}

func Elevators() *Kind {
	return define(model[store.Elevator]{
		slug:     "elevators",
		title:    "Elevator Schedule",
		singular: "Elevator",
		table:    "elevators",
		search:   "location",
		columns: func() []table.Column[store.Elevator] {
			return []table.Column[store.Elevator]{
				idColumn(func(e store.Elevator) int64 { return e.ID }),
				table.NewText("location", "Location", func(e store.Elevator) string { return e.Location }),
				table.NewText("bank", "Bank", func(e store.Elevator) string { return e.Bank }),
				table.NewSelect("elevator_type", "Type", func(e store.Elevator) string { return e.ElevatorType }, ElevatorTypes),
				table.NewNumber("floors_served", "Floors Served", func(e store.Elevator) int { return e.FloorsServed }),
				notesColumn(func(e store.Elevator) string { return e.Notes }),
				updatedColumn(func(e store.Elevator) time.Time { return e.UpdatedAt }),
			}
		},
		id:      func(e store.Elevator) int64 { return e.ID },
		project: func(e store.Elevator) int64 { return e.ProjectID },
		place:   func(e *store.Elevator, projectID int64) { e.ProjectID = projectID },
		list:    (*store.Store).ListElevators,
		get:     (*store.Store).GetElevator,
		create:  (*store.Store).CreateElevator,
		update:  (*store.Store).UpdateElevator,
		remove:  (*store.Store).DeleteElevator,
	})
}

func Intercoms() *Kind {
	return define(model[store.Intercom]{
		slug:     "intercoms",
		title:    "Intercom Schedule",
		singular: "Intercom",
		table:    "intercoms",
		search:   "location",
		columns: func() []table.Column[store.Intercom] {
			return []table.Column[store.Intercom]{
				idColumn(func(i store.Intercom) int64 { return i.ID }),
				table.NewText("location", "Location", func(i store.Intercom) string { return i.Location }),
				table.NewSelect("intercom_type", "Type", func(i store.Intercom) string { return i.IntercomType }, IntercomTypes),
				notesColumn(func(i store.Intercom) string { return i.Notes }),
				updatedColumn(func(i store.Intercom) time.Time { return i.UpdatedAt }),
			}
		},
		id:      func(i store.Intercom) int64 { return i.ID },
		project: func(i store.Intercom) int64 { return i.ProjectID },
		place:   func(i *store.Intercom, projectID int64) { i.ProjectID = projectID },
		list:    (*store.Store).ListIntercoms,
		get:     (*store.Store).GetIntercom,
		create:  (*store.Store).CreateIntercom,
		update:  (*store.Store).UpdateIntercom,
		remove:  (*store.Store).DeleteIntercom,
	})
}
