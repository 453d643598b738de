package reducer

import (
	"testing"

	"github.com/bissquit/incident-garden-live/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func component(id string, status domain.ComponentStatus) domain.Component {
	return domain.Component{ID: id, Name: "component " + id, Status: status}
}

func incident(id string, timeline ...domain.IncidentTimelineEntry) domain.Incident {
	return domain.Incident{ID: id, Title: "incident " + id, Status: domain.IncidentStatusInvestigating, Timeline: timeline}
}

func incidentEntry(id, parent, message string) domain.IncidentTimelineEntry {
	return domain.IncidentTimelineEntry{ID: id, IncidentID: parent, Message: message, Status: domain.IncidentStatusIdentified}
}

func TestNewComponent_PrependsNewest(t *testing.T) {
	var components []domain.Component
	components = NewComponent(components, component("1", domain.ComponentStatusOperational))
	components = NewComponent(components, component("2", domain.ComponentStatusOperational))

	require.Len(t, components, 2)
	assert.Equal(t, "2", components[0].ID)
	assert.Equal(t, "1", components[1].ID)
}

func TestNewComponent_DuplicateIsUpsert(t *testing.T) {
	components := []domain.Component{
		component("a", domain.ComponentStatusOperational),
		component("b", domain.ComponentStatusOperational),
	}

	payloads := []domain.Component{
		{ID: "b", Name: "first", Status: domain.ComponentStatusDegraded},
		{ID: "b", Name: "second", Status: domain.ComponentStatusMajorOutage},
		{ID: "b", Name: "last", Status: domain.ComponentStatusPartialOutage},
	}
	for _, p := range payloads {
		components = NewComponent(components, p)
	}

	require.Len(t, components, 2)
	assert.Equal(t, "a", components[0].ID)
	assert.Equal(t, payloads[len(payloads)-1], components[1])
}

func TestUpdateComponent(t *testing.T) {
	components := []domain.Component{
		component("1", domain.ComponentStatusOperational),
		component("2", domain.ComponentStatusOperational),
	}

	t.Run("replaces matching entry in place", func(t *testing.T) {
		next := UpdateComponent(components, component("2", domain.ComponentStatusMajorOutage))

		require.Len(t, next, 2)
		assert.Equal(t, domain.ComponentStatusMajorOutage, next[1].Status)
		assert.Equal(t, domain.ComponentStatusOperational, components[1].Status, "input must not be mutated")
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		next := UpdateComponent(components, component("3", domain.ComponentStatusDegraded))
		assert.Equal(t, components, next)
	})
}

func TestDeleteComponent(t *testing.T) {
	components := []domain.Component{
		component("1", domain.ComponentStatusOperational),
		component("2", domain.ComponentStatusOperational),
		component("3", domain.ComponentStatusOperational),
	}

	tests := []struct {
		name     string
		id       string
		expected []string
	}{
		{"removes middle entry", "2", []string{"1", "3"}},
		{"removes first entry", "1", []string{"2", "3"}},
		{"missing id leaves collection unchanged", "42", []string{"1", "2", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := DeleteComponent(components, tt.id)

			ids := make([]string, 0, len(next))
			for _, c := range next {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.expected, ids)
			assert.Len(t, components, 3)
		})
	}
}

func TestDeleteComponent_Twice(t *testing.T) {
	components := []domain.Component{component("1", domain.ComponentStatusOperational)}

	once := DeleteComponent(components, "1")
	twice := DeleteComponent(once, "1")

	assert.Empty(t, once)
	assert.Equal(t, once, twice)
}

func TestUpdateIncident_PreservesTimeline(t *testing.T) {
	existing := incident("i1", incidentEntry("e1", "i1", "looking into it"))
	incidents := []domain.Incident{existing}

	update := domain.Incident{ID: "i1", Title: "renamed", Status: domain.IncidentStatusMonitoring}
	next := UpdateIncident(incidents, update)

	require.Len(t, next, 1)
	assert.Equal(t, "renamed", next[0].Title)
	assert.Equal(t, domain.IncidentStatusMonitoring, next[0].Status)
	assert.Equal(t, existing.Timeline, next[0].Timeline)
}

func TestUpdateIncident_UnknownIsNoop(t *testing.T) {
	incidents := []domain.Incident{incident("i1")}

	next := UpdateIncident(incidents, incident("i2"))

	assert.Equal(t, incidents, next)
}

func TestNewIncident_Upsert(t *testing.T) {
	incidents := []domain.Incident{incident("i1"), incident("i2")}

	next := NewIncident(incidents, domain.Incident{ID: "i2", Title: "again"})
	require.Len(t, next, 2)
	assert.Equal(t, "again", next[1].Title)

	next = NewIncident(next, incident("i3"))
	require.Len(t, next, 3)
	assert.Equal(t, "i3", next[0].ID)
}

func TestDeleteIncident(t *testing.T) {
	incidents := []domain.Incident{incident("i1"), incident("i2")}

	next := DeleteIncident(incidents, "i1")
	require.Len(t, next, 1)
	assert.Equal(t, "i2", next[0].ID)

	assert.Equal(t, next, DeleteIncident(next, "i1"))
}

func TestUpsertIncidentTimeline_Prepends(t *testing.T) {
	prior := []domain.IncidentTimelineEntry{
		incidentEntry("e2", "i1", "second"),
		incidentEntry("e1", "i1", "first"),
	}
	incidents := []domain.Incident{incident("i0"), incident("i1", prior...)}

	entry := incidentEntry("e3", "i1", "third")
	next := UpsertIncidentTimeline(incidents, entry)

	require.Len(t, next, 2)
	assert.Equal(t, []domain.IncidentTimelineEntry{entry, prior[0], prior[1]}, next[1].Timeline)
	assert.Len(t, incidents[1].Timeline, 2, "input timeline must not be mutated")
	assert.Equal(t, incidents[0], next[0])
}

func TestUpsertIncidentTimeline_DuplicateEntry(t *testing.T) {
	incidents := []domain.Incident{incident("i1", incidentEntry("e1", "i1", "first"))}

	next := UpsertIncidentTimeline(incidents, incidentEntry("e1", "i1", "edited"))

	require.Len(t, next[0].Timeline, 1)
	assert.Equal(t, "edited", next[0].Timeline[0].Message)
}

func TestUpsertIncidentTimeline_UnknownParent(t *testing.T) {
	incidents := []domain.Incident{incident("i1")}

	next := UpsertIncidentTimeline(incidents, incidentEntry("e1", "missing", "orphan"))

	assert.Equal(t, incidents, next)
}

func TestDeleteIncidentTimeline(t *testing.T) {
	incidents := []domain.Incident{
		incident("i1", incidentEntry("e2", "i1", "second"), incidentEntry("e1", "i1", "first")),
	}

	t.Run("removes entry", func(t *testing.T) {
		next := DeleteIncidentTimeline(incidents, "i1", "e2")
		require.Len(t, next[0].Timeline, 1)
		assert.Equal(t, "e1", next[0].Timeline[0].ID)
	})

	t.Run("unknown parent leaves incidents unchanged", func(t *testing.T) {
		next := DeleteIncidentTimeline(incidents, "nope", "e2")
		assert.Equal(t, incidents, next)
	})

	t.Run("unknown entry leaves incidents unchanged", func(t *testing.T) {
		next := DeleteIncidentTimeline(incidents, "i1", "e9")
		assert.Equal(t, incidents, next)
	})
}

func TestMaintenanceReducers(t *testing.T) {
	entry := domain.MaintenanceTimelineEntry{ID: "u1", MaintenanceID: "m1", Message: "started"}

	var maintenances []domain.Maintenance
	maintenances = NewMaintenance(maintenances, domain.Maintenance{ID: "m1", Title: "db upgrade"})
	maintenances = NewMaintenance(maintenances, domain.Maintenance{ID: "m2", Title: "network"})
	maintenances = UpsertMaintenanceTimeline(maintenances, entry)

	require.Len(t, maintenances, 2)
	assert.Equal(t, "m2", maintenances[0].ID)
	assert.Equal(t, []domain.MaintenanceTimelineEntry{entry}, maintenances[1].Timeline)

	maintenances = UpdateMaintenance(maintenances, domain.Maintenance{ID: "m1", Title: "db upgrade v2"})
	assert.Equal(t, "db upgrade v2", maintenances[1].Title)
	assert.Len(t, maintenances[1].Timeline, 1, "update keeps timeline")

	unchanged := UpsertMaintenanceTimeline(maintenances, domain.MaintenanceTimelineEntry{ID: "u2", MaintenanceID: "gone"})
	assert.Equal(t, maintenances, unchanged)

	maintenances = DeleteMaintenanceTimeline(maintenances, "m1", "u1")
	assert.Empty(t, maintenances[1].Timeline)

	maintenances = DeleteMaintenance(maintenances, "m2")
	require.Len(t, maintenances, 1)
	assert.Equal(t, "m1", maintenances[0].ID)

	assert.Equal(t, maintenances, DeleteMaintenance(maintenances, "m2"))
	assert.Equal(t, maintenances, UpdateMaintenance(maintenances, domain.Maintenance{ID: "m9"}))
}

func TestAllOperational(t *testing.T) {
	tests := []struct {
		name       string
		components []domain.Component
		expected   bool
	}{
		{"empty collection", nil, true},
		{"all operational", []domain.Component{
			component("1", domain.ComponentStatusOperational),
			component("2", domain.ComponentStatusOperational),
		}, true},
		{"one degraded", []domain.Component{
			component("1", domain.ComponentStatusOperational),
			component("2", domain.ComponentStatusDegraded),
		}, false},
		{"major outage", []domain.Component{
			component("1", domain.ComponentStatusMajorOutage),
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AllOperational(tt.components))
		})
	}
}

func TestAllOperational_FlipsWithUpdates(t *testing.T) {
	components := []domain.Component{
		component("1", domain.ComponentStatusOperational),
		component("2", domain.ComponentStatusOperational),
	}
	require.True(t, AllOperational(components))

	components = UpdateComponent(components, component("2", domain.ComponentStatusPartialOutage))
	assert.False(t, AllOperational(components))

	components = UpdateComponent(components, component("2", domain.ComponentStatusOperational))
	assert.True(t, AllOperational(components))
}
