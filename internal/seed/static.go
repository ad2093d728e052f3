// ABOUTME: Static demo walk used when no OpenAI key is available.
// ABOUTME: Harbor Point Tower, a mid-rise office building with a mixed takeover and new install scope.

package seed

import "github.com/2389/sitewalk/internal/store"

func mp(v float64) *float64 { return &v }

// StaticWalk returns a fresh copy of the demo walk.
func StaticWalk() *Walk {
	return &Walk{
		Project: store.Project{
			Name:     "Harbor Point Tower",
			Client:   "Acme Properties",
			Address:  "400 Harbor Point Blvd",
			WalkDate: "2026-10-01",
		},
		AccessPoints: []store.AccessPoint{
			{Location: "Main Lobby Entry", ReaderType: "smart", LockType: "exit-device", Monitoring: "dps-rex", Placement: "perimeter", Takeover: "takeover", Notes: "Existing HID reader, reuse wiring"},
			{Location: "Loading Dock", ReaderType: "prox", LockType: "maglock", Monitoring: "dps", Placement: "perimeter", Takeover: "replace", Notes: "Maglock needs new REX motion"},
			{Location: "Parking Garage Stair", ReaderType: "smart", LockType: "strike", Monitoring: "dps", Placement: "perimeter", Takeover: "new"},
			{Location: "IDF Room 2nd Floor", ReaderType: "keypad", LockType: "mortise", Monitoring: "dps", Placement: "interior", Takeover: "new", Notes: "Core drill required"},
			{Location: "Suite 300 Entry", ReaderType: "mobile", LockType: "strike", Monitoring: "dps-rex", Placement: "interior", Takeover: "new"},
			{Location: "Roof Access", ReaderType: "prox", LockType: "mortise", Monitoring: "dps", Placement: "perimeter", Takeover: "takeover", Notes: "Alarm contact only today"},
		},
		Cameras: []store.Camera{
			{Location: "Main Lobby", CameraType: "dome", Mounting: "ceiling", Resolution: mp(4), Environment: "indoor"},
			{Location: "Loading Dock", CameraType: "bullet", Mounting: "wall", Resolution: mp(8), Environment: "outdoor", Notes: "Needs IR for night coverage"},
			{Location: "Parking P1", CameraType: "fisheye", Mounting: "ceiling", Resolution: mp(12), Environment: "indoor"},
			{Location: "Front Plaza", CameraType: "multisensor", Mounting: "pole", Resolution: mp(20), Environment: "outdoor", Notes: "Pole base exists, verify conduit"},
			{Location: "Elevator Lobby 1st Floor", CameraType: "dome", Mounting: "corner", Environment: "indoor"},
		},
		Elevators: []store.Elevator{
			{Location: "Core A", Bank: "Passenger", ElevatorType: "traction", FloorsServed: 12, Notes: "Destination dispatch, needs integration"},
			{Location: "Core A", Bank: "Passenger", ElevatorType: "traction", FloorsServed: 12},
			{Location: "Loading Dock", Bank: "Service", ElevatorType: "freight", FloorsServed: 13, Notes: "Serves P1"},
		},
		Intercoms: []store.Intercom{
			{Location: "Main Lobby Entry", IntercomType: "video", Notes: "Call to security desk"},
			{Location: "Loading Dock", IntercomType: "audio"},
		},
	}
}
