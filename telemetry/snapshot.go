package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pthm-cable/evosim/components"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the complete world state at one step.
type Snapshot struct {
	Version int    `json:"version"`
	Seed    uint64 `json:"seed"`
	Engine  string `json:"engine"`

	WorldWidth  float64 `json:"world_width"`
	WorldHeight float64 `json:"world_height"`

	Step    uint64  `json:"step"`
	SimTime float64 `json:"sim_time"`

	Agents    []AgentState    `json:"agents"`
	Resources []ResourceState `json:"resources"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// AgentState holds one agent's complete state.
type AgentState struct {
	ID         uint64 `json:"id"`
	Generation uint32 `json:"generation"`
	ParentA    uint64 `json:"parent_a,omitempty"`
	ParentB    uint64 `json:"parent_b,omitempty"`
	Predator   bool   `json:"predator"`

	// Position and movement
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	VelX float64 `json:"vel_x"`
	VelY float64 `json:"vel_y"`

	// Vitals
	Energy           float64 `json:"energy"`
	MaxEnergy        float64 `json:"max_energy"`
	Age              float64 `json:"age"`
	LastReproduction float64 `json:"last_reproduction"`
	State            string  `json:"state"`
	Kills            uint32  `json:"kills"`

	Genes []float64 `json:"genes"`
}

// ResourceState holds one resource's state.
type ResourceState struct {
	ID               uint64  `json:"id"`
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	Energy           float64 `json:"energy"`
	MaxEnergy        float64 `json:"max_energy"`
	TargetEnergy     float64 `json:"target_energy"`
	GrowthRate       float64 `json:"growth_rate"`
	RegenerationRate float64 `json:"regeneration_rate"`
	SpawnFade        float64 `json:"spawn_fade"`
	DepleteFade      float64 `json:"deplete_fade"`
	Depleting        bool    `json:"depleting,omitempty"`
}

// NewAgentState flattens an agent for serialization.
func NewAgentState(a *components.Agent) AgentState {
	return AgentState{
		ID:               a.ID,
		Generation:       a.Generation,
		ParentA:          a.ParentA,
		ParentB:          a.ParentB,
		Predator:         a.Predator,
		X:                a.Pos.X,
		Y:                a.Pos.Y,
		VelX:             a.Vel.X,
		VelY:             a.Vel.Y,
		Energy:           a.Energy,
		MaxEnergy:        a.MaxEnergy,
		Age:              a.Age,
		LastReproduction: a.LastReproduction,
		State:            a.State.String(),
		Kills:            a.Kills,
		Genes:            append([]float64(nil), a.Genes[:]...),
	}
}

// NewResourceState flattens a resource for serialization.
func NewResourceState(r *components.Resource) ResourceState {
	return ResourceState{
		ID:               r.ID,
		X:                r.Pos.X,
		Y:                r.Pos.Y,
		Energy:           r.Energy,
		MaxEnergy:        r.MaxEnergy,
		TargetEnergy:     r.TargetEnergy,
		GrowthRate:       r.GrowthRate,
		RegenerationRate: r.RegenerationRate,
		SpawnFade:        r.SpawnFade,
		DepleteFade:      r.DepleteFade,
		Depleting:        r.Depleting,
	}
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Step)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Step, sanitized)
	}
	name += ".json"

	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}
