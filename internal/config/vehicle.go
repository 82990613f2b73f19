package config

import (
	"fmt"
	"os"

	"shuttle/internal/domain/models"

	"gopkg.in/yaml.v3"
)

// Vehicle is the per-deployment description of the shuttle and its route,
// loaded from the YAML file named by VEHICLE_FILE.
type Vehicle struct {
	Capacity      int                 `yaml:"capacity"`
	DriverName    string              `yaml:"driver_name"`
	FarePerTicket float64             `yaml:"fare_per_ticket"`
	Deposit       float64             `yaml:"deposit"`
	Commission    float64             `yaml:"commission"`
	Stops         []models.Stop       `yaml:"stops"`
	Dispatchers   []models.Dispatcher `yaml:"dispatchers"`
}

// LoadVehicle reads and validates a vehicle file. An empty path yields the
// zero Vehicle and the shift falls back to its defaults.
func LoadVehicle(path string) (Vehicle, error) {
	var v Vehicle
	if path == "" {
		return v, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return v, fmt.Errorf("read vehicle file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("parse vehicle file %s: %w", path, err)
	}
	return v, v.Validate()
}

func (v Vehicle) Validate() error {
	if v.Capacity < 0 {
		return fmt.Errorf("capacity must not be negative")
	}
	if len(v.Stops) == 1 {
		return fmt.Errorf("a route needs at least two stops")
	}
	for i, s := range v.Stops {
		if s.Name == "" {
			return fmt.Errorf("stop %d has no name", i+1)
		}
	}
	seen := map[string]bool{}
	for _, d := range v.Dispatchers {
		if d.ID == "" || d.Name == "" {
			return fmt.Errorf("dispatcher needs id and name")
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate dispatcher id %q", d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}
